package preflight

import (
	"fmt"
	"os"
	"strings"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// CheckSource checks that a local record source exists and is a regular
// file. Stdin and s3:// sources are only checked when opened.
func (c *Checker) CheckSource(location string) CheckResult {
	result := CheckResult{
		Name:     "source",
		Required: true,
		Code:     ierrors.ErrCodeSourceNotFound,
	}

	switch {
	case location == "":
		result.Status = StatusFail
		result.Message = "no source configured"
		return result
	case location == "-":
		result.Status = StatusPass
		result.Message = "stdin"
		return result
	case strings.HasPrefix(location, "s3://"):
		result.Status = StatusPass
		result.Message = location + " (checked on open)"
		return result
	}

	info, err := os.Stat(location)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read %s: %v", location, err)
		return result
	}
	if info.IsDir() {
		result.Status = StatusFail
		result.Message = location + " is a directory"
		return result
	}
	if info.Size() == 0 {
		result.Status = StatusWarn
		result.Message = location + " is empty, nothing will be indexed"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%s)", location, formatBytes(uint64(info.Size())))
	return result
}
