package service

import "errors"

var (
	ErrNotStarted       = errors.New("service not started")
	ErrNoCommitment     = errors.New("no commitment for period")
	ErrCommitmentSealed = errors.New("commitment already submitted to the oracle")
	ErrQueueFull        = errors.New("settlement queue full")
)
