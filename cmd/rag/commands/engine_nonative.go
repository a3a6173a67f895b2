//go:build !vosk

package commands

import (
	"errors"

	"multimodal-rag/internal/transcriber"
)

var errNoNativeVosk = errors.New("vosk-native transcriber needs a build with -tags vosk; use vosk-server instead")

func newNativeEngine(string) (transcriber.Engine, func(), error) {
	return nil, nil, errNoNativeVosk
}
