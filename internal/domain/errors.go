package domain

import (
	"errors"
	"fmt"
)

// Pipeline errors. Adapters wrap these so callers can classify failures
// with errors.Is regardless of the underlying cause.
var (
	// ErrLoad indicates the document source directory or a file could not be read.
	ErrLoad = errors.New("load error")

	// ErrEmbedding indicates the embedding model is unavailable or rejected its input.
	ErrEmbedding = errors.New("embedding error")

	// ErrIndexBuild indicates vectors and chunks could not form a consistent index.
	ErrIndexBuild = errors.New("index build error")

	// ErrRetrieval indicates the index or chunk store is missing, empty or out of sync.
	ErrRetrieval = errors.New("retrieval error")

	// ErrLLMService indicates the chat-completion service call failed.
	ErrLLMService = errors.New("llm service error")

	// ErrInvalidInput indicates malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// LLMReason classifies an LLM service failure.
type LLMReason string

const (
	LLMReasonNetwork     LLMReason = "network"
	LLMReasonTimeout     LLMReason = "timeout"
	LLMReasonAuth        LLMReason = "auth"
	LLMReasonRateLimit   LLMReason = "rate_limit"
	LLMReasonBadResponse LLMReason = "bad_response"
)

// LLMError is returned by LLM adapters. It matches ErrLLMService.
type LLMError struct {
	Reason     LLMReason
	StatusCode int
	Err        error
}

func (e *LLMError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%s, status %d): %v", ErrLLMService, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrLLMService, e.Reason, e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

func (e *LLMError) Is(target error) bool { return target == ErrLLMService }

// Stage names one step of the query pipeline.
type Stage string

const (
	StageReceive  Stage = "receive_query"
	StageEmbed    Stage = "embed_query"
	StageRetrieve Stage = "retrieve_chunks"
	StageCompose  Stage = "compose_prompt"
	StageLLM      Stage = "call_llm"
)

// StageError records which query stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }
