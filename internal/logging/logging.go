package logging

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const fileStamp = "20060102_150405"

// LogFilePath names the log file of one command run:
// <logsDir>/<app>_<command>[_<participant>].<start>.log. The participant is
// left out when empty.
func LogFilePath(logsDir, app, command, participant string, start time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", baseName(app, command, participant), start.Format(fileStamp)))
}

// StatusFilePath names the status file the monitor rewrites for a participant.
func StatusFilePath(logsDir, app, participant string) string {
	return filepath.Join(logsDir, baseName(app, participant, "status")+".json")
}

func baseName(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "_")
}
