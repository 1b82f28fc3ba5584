package main

import (
	"fmt"
	"strings"

	"github.com/pdxmph/huskytrace/pkg/config"
)

// backendFlag is a flag type for the handoff store backend
type backendFlag string

func (b *backendFlag) String() string {
	return string(*b)
}

func (b *backendFlag) Set(value string) error {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case config.BackendMemory, config.BackendSQLite, config.BackendRedis:
		*b = backendFlag(v)
		return nil
	}
	return fmt.Errorf("must be one of %s, %s, %s", config.BackendMemory, config.BackendSQLite, config.BackendRedis)
}

func (b *backendFlag) Type() string {
	return "backend"
}
