// Package config loads engine settings from CUE.
//
// The schema in schema.cue carries every default. A user file (CUE or
// plain JSON, which is valid CUE) is unified with the schema, validated
// concretely and decoded into Config.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/sksthrs/mekiku/internal/transcript"
)

//go:embed schema.cue
var schemaCUE string

// Config is the decoded engine configuration.
type Config struct {
	MaxLogScan         int     `json:"max_log_scan"`
	SameSenderWindowMS int64   `json:"same_sender_window_ms"`
	MaxUndo            int     `json:"max_undo"`
	MaxUndoRetries     int     `json:"max_undo_retries"`
	Complements        int     `json:"complements"`
	Display            Display `json:"display"`
	Journal            string  `json:"journal"`
}

// Display describes the caption surface.
type Display struct {
	Columns int `json:"columns"`
	Lines   int `json:"lines"`
}

// SameSenderWindow returns the same-sender window as a duration.
func (c Config) SameSenderWindow() time.Duration {
	return time.Duration(c.SameSenderWindowMS) * time.Millisecond
}

// Params returns the estimator parameters.
func (c Config) Params() transcript.Params {
	return transcript.Params{
		MaxLogScan:       c.MaxLogScan,
		SameSenderWindow: c.SameSenderWindow(),
	}
}

// Default returns the schema defaults.
func Default() Config {
	cfg, err := decode(cuecontext.New(), nil)
	if err != nil {
		// the embedded schema is fixed at build time
		panic(fmt.Sprintf("config: invalid embedded schema: %v", err))
	}
	return cfg
}

// Load reads the file at path and applies it over the defaults.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse applies the CUE or JSON source in data over the defaults.
// filename is used in error positions only.
func Parse(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()
	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %s", filename, details(err))
	}
	return decode(ctx, &user)
}

func decode(ctx *cue.Context, user *cue.Value) (Config, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config"))
	if user != nil {
		v = v.Unify(*user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", details(err))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %s", details(err))
	}
	return cfg, nil
}

func details(err error) string {
	return cueerrors.Details(err, nil)
}
