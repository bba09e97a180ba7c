package kv

import "errors"

var (
	ErrEmptyPath                    = errors.New("empty file store path")
	ErrCorruptedStore               = errors.New("file store contents are not valid JSON")
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
)
