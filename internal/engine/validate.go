package engine

import (
	"fmt"
	"strings"
)

const maxMarkers = 32

func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w: command cannot be empty", ErrInvalidArgument)
	}
	if strings.ContainsRune(command, 0) {
		return fmt.Errorf("%w: command contains a NUL byte", ErrInvalidArgument)
	}
	return nil
}

// ValidateMarkers rejects empty markers, which would match at the search
// position without consuming anything.
func ValidateMarkers(markers []string) error {
	if len(markers) > maxMarkers {
		return fmt.Errorf("%w: too many markers (max %d)", ErrInvalidArgument, maxMarkers)
	}
	for i, m := range markers {
		if m == "" {
			return fmt.Errorf("%w: marker %d is empty", ErrInvalidArgument, i)
		}
	}
	return nil
}
