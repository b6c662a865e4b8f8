package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLaunch             = errors.New("browser launch failed")
	ErrConnection         = errors.New("devtools connection failed")
	ErrDomainEnable       = errors.New("domain enable failed")
	ErrEmulation          = errors.New("emulation failed")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrUnknownPreset      = errors.New("unknown preset")
	ErrPersist            = errors.New("frame persist failed")
	ErrMissingIdentifier  = errors.New("frame identifier is required")
	ErrInvalidIdentifier  = errors.New("invalid frame identifier")
	ErrNoFramesFound      = errors.New("no frames found")
	ErrEncoding           = errors.New("video encoding failed")

	ErrNotStarted     = errors.New("browser session not started")
	ErrAlreadyStarted = errors.New("browser session already started")
	ErrNavigate       = errors.New("navigation failed")
	ErrSessionBusy    = errors.New("another recording is active")
)

// ValidateIdentifier 校验标识：非空，且只能作为单个文件名片段使用
func ValidateIdentifier(id string) error {
	if id == "" {
		return ErrMissingIdentifier
	}
	if id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}
