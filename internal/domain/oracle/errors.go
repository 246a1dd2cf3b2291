package oracle

import "errors"

var (
	ErrOneQuestionPerPeriod = errors.New("question already opened for period")
	ErrUnknownQuestion      = errors.New("unknown question")
	ErrInvalidPeriod        = errors.New("invalid period")
)
