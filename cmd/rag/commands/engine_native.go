//go:build vosk

package commands

import (
	"multimodal-rag/internal/transcriber"
	"multimodal-rag/internal/transcriber/vosk"
)

func newNativeEngine(modelPath string) (transcriber.Engine, func(), error) {
	e, err := vosk.LoadModel(modelPath)
	if err != nil {
		return nil, nil, err
	}
	return e, e.Close, nil
}
