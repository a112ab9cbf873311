package types

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the representation pipeline. Stages wrap one of these
// so callers can classify a failure with errors.Is.
var (
	ErrImageLoad          = errors.New("image load error")
	ErrNoFaceFound        = errors.New("no face found")
	ErrAlignment          = errors.New("alignment failure")
	ErrEmbeddingInference = errors.New("embedding inference error")
	ErrModelAsset         = errors.New("model asset not found")
	ErrTooFewImages       = errors.New("at least two images are required")
)

// Stage identifies a step of the representation pipeline.
type Stage string

const (
	StageLoad   Stage = "load"
	StageLocate Stage = "locate"
	StageAlign  Stage = "align"
	StageEmbed  Stage = "embed"
)

// StageError is the terminal failure of a pipeline run for one image.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AssetError is returned at startup when a required model file is missing.
type AssetError struct {
	Name string
	Path string
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("model '%s' not found at path: %s", e.Name, e.Path)
}

func (e *AssetError) Unwrap() error {
	return ErrModelAsset
}
