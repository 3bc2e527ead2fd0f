// Package config loads audiometer settings from defaults, an optional config
// file and AUDIOMETER_* environment variables, in increasing precedence.
//
// Keys mirror the nested struct layout with "_" between levels, so
// audio.backend is read from AUDIOMETER_AUDIO_BACKEND.
package config
