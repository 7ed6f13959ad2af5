package boterr

import (
	"errors"
	"fmt"
	"runtime/debug"

	"loopmuse/pkg/logger"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeConfig        ErrorType = "CONFIG"
	ErrorTypeChannel       ErrorType = "CHANNEL"
	ErrorTypeUpstream      ErrorType = "UPSTREAM"
	ErrorTypeResolution    ErrorType = "RESOLUTION"
	ErrorTypeNotConfigured ErrorType = "NOT_CONFIGURED"
	ErrorTypeNotConnected  ErrorType = "NOT_CONNECTED"
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeAudio         ErrorType = "AUDIO"
	ErrorTypeInternal      ErrorType = "INTERNAL"
)

// User-facing replies shared by several commands
const (
	MsgNoChannel      = "❌ No voice channel ID has been set. Use `/setchannel` first."
	MsgInvalidChannel = "❌ Invalid voice channel ID. Please set a valid voice channel ID first."
	MsgNotConnected   = "❌ I'm not in a voice channel!"
	MsgJoinFailed     = "❌ Failed to join voice channel: %v"
)

// ErrNotConnected is returned when an operation needs a live voice connection
var ErrNotConnected = New(ErrorTypeNotConnected, "not connected to a voice channel", MsgNotConnected, nil)

// BotError represents a structured error with context
type BotError struct {
	Type        ErrorType
	Message     string
	UserMessage string
	Cause       error
	Context     map[string]interface{}
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.Cause
}

// Is matches any BotError of the same type, so errors.Is(err, ErrNotConnected) works
// for freshly constructed errors too.
func (e *BotError) Is(target error) bool {
	var other *BotError
	if !errors.As(target, &other) {
		return false
	}
	return other.Type == e.Type
}

// New creates a new BotError
func New(errorType ErrorType, message, userMessage string, cause error) *BotError {
	return &BotError{
		Type:        errorType,
		Message:     message,
		UserMessage: userMessage,
		Cause:       cause,
		Context:     make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *BotError) WithContext(key string, value interface{}) *BotError {
	e.Context[key] = value
	return e
}

// Specific error constructors for common scenarios
func NewConfigError(message, userMessage string) *BotError {
	return New(ErrorTypeConfig, message, userMessage, nil)
}

func NewChannelError(message, userMessage string, cause error) *BotError {
	return New(ErrorTypeChannel, message, userMessage, cause)
}

func NewUpstreamError(message string, cause error) *BotError {
	return New(ErrorTypeUpstream, message, "❌ The music service did not respond. Please try again later.", cause)
}

func NewResolutionError(message string, cause error) *BotError {
	return New(ErrorTypeResolution, message, "❌ Could not find a playable stream for that track.", cause)
}

func NewNotConfiguredError(message string) *BotError {
	return New(ErrorTypeNotConfigured, message, "❌ The playlist source is not configured.", nil)
}

func NewValidationError(message, userMessage string) *BotError {
	return New(ErrorTypeValidation, message, userMessage, nil)
}

func NewAudioError(message string, cause error) *BotError {
	return New(ErrorTypeAudio, message, "❌ Audio playback failed.", cause)
}

// TypeOf returns the BotError type carried by err, or ErrorTypeInternal
func TypeOf(err error) ErrorType {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Type
	}
	return ErrorTypeInternal
}

// UserMessage returns the reply shown to a user for err
func UserMessage(err error) string {
	var botErr *BotError
	if errors.As(err, &botErr) && botErr.UserMessage != "" {
		return botErr.UserMessage
	}

	switch TypeOf(err) {
	case ErrorTypeConfig:
		return "❌ The bot is not configured for that."
	case ErrorTypeChannel:
		return MsgInvalidChannel
	case ErrorTypeNotConnected:
		return MsgNotConnected
	default:
		return fmt.Sprintf("❌ An error occurred: %v", err)
	}
}

// Log writes err at a level that matches its type
func Log(log *logger.Logger, msg string, err error, fields ...logger.Fields) {
	switch TypeOf(err) {
	case ErrorTypeValidation, ErrorTypeNotConnected, ErrorTypeConfig, ErrorTypeChannel:
		f := logger.Fields{"error": err.Error()}
		for _, extra := range fields {
			for k, v := range extra {
				f[k] = v
			}
		}
		log.Warn(msg, f)
	default:
		log.Error(msg, err, fields...)
	}
}

// Recover is deferred at the top of goroutines to keep a panic from killing the bot
func Recover(log *logger.Logger, where string) {
	if r := recover(); r != nil {
		log.LogPanic(fmt.Sprintf("%s: %v", where, r), debug.Stack())
	}
}
