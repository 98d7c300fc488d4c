package config

import (
	"errors"
	"fmt"

	"github.com/okian/episodecam/internal/domain/types"
)

// Sentinel error kinds for this package. ErrInvalidConfig also matches
// types.ErrConfig so callers can classify it with the shared taxonomy.
var (
	ErrInvalidConfig = fmt.Errorf("%w: invalid config", types.ErrConfig)
	ErrLoadConfig    = errors.New("load config failed")
)
