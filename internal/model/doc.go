package model

// Package model defines domain data structures used across the bot: download
// tasks, media files, and state enums. Structures carry explicit state
// transitions and no behavior beyond classification and ordering helpers.
