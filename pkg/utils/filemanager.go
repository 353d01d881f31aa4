// =============================================================================
// posledger - File Manager Utility
// =============================================================================
//
// File helpers for the run reports:
//   - Directory management
//   - Report file naming
//   - Retention (pruning old reports)
//
// RETENTION:
//   Reports older than report.keep_days are removed at the start of a run.
//   Only files with the report extensions are touched, so the report
//   directory can be shared with other files.
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all given directories if they don't exist.
func EnsureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateFileName builds a file name from a format.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - The run id
//               {timestamp} - Run start (YYYYMMDD_HHMMSS)
//               {date}      - Run start date (YYYYMMDD)
//   - runID: The run id.
//   - at: The run start.
//   - ext: The required extension, including the dot.
//
// EXAMPLE:
//   format: "sync_{timestamp}_{uuid}.xlsx"
//   output: "sync_20240301_101500_a1b2c3d4-e5f6-7890-abcd-ef1234567890.xlsx"
func GenerateFileName(format, runID string, at time.Time, ext string) string {
	result := strings.NewReplacer(
		"{uuid}", runID,
		"{timestamp}", at.Format("20060102_150405"),
		"{date}", at.Format("20060102"),
	).Replace(format)

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}
	return result
}

// ReplaceExt swaps the extension of a file name.
func ReplaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// =============================================================================
// RETENTION
// =============================================================================

// CleanOldFiles removes files in dir older than maxAge whose extension is one
// of exts. Subdirectories are left alone.
//
// RETURNS:
//   - The number of files removed.
//   - An error if cleaning fails.
func CleanOldFiles(dir string, maxAge time.Duration, exts ...string) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clean %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !hasExt(entry.Name(), exts) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return removed, fmt.Errorf("failed to clean %s: %w", dir, err)
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				return removed, fmt.Errorf("failed to clean %s: %w", dir, err)
			}
			removed++
		}
	}
	return removed, nil
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
