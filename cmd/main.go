package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/gommon/log"

	"dreamcanvas/pkg/capability"
	"dreamcanvas/pkg/pipeline"
	"dreamcanvas/pkg/server"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGKILL)

	caps := buildCapabilities()
	orch := pipeline.New(caps, pipeline.Config{})

	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		outputDir = "outputs"
	}

	srv := server.NewServer(ctx, orch, outputDir)
	srv.Echo.Logger.SetLevel(log.DEBUG)

	addr := ":8080"
	if envAddr := os.Getenv("PORT"); envAddr != "" {
		addr = ":" + envAddr
	}

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(ctx); err != nil {
			log.Fatal(err)
		}
		done()
		close(finishedShutDown)
	}()

	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(err)
	}
	<-finishedShutDown
}

// buildCapabilities assembles providers from the environment. OpenAI covers
// everything by default; with no key it points at a local inference server
// for chat and leans on edge-tts for speech. Gemini, when configured, takes
// over caption and story. A missing ffmpeg leaves the composer nil and runs
// finish without video.
func buildCapabilities() capability.Set {
	apiKey := os.Getenv("OPENAI_API_KEY")
	openAI := capability.NewOpenAI(apiKey, os.Getenv("OPENAI_MODEL"))
	if apiKey == "" {
		openAI.ChangeBaseURL("http://localhost:1234/v1")
		openAI.SetModel("")
	}

	caps := capability.Set{
		Captioner:   openAI,
		Storyteller: openAI,
		Synthesizer: openAI,
	}

	if geminiKey := os.Getenv("GEMINI_API_KEY"); geminiKey != "" {
		gemini, err := capability.NewGemini(geminiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Warnf("Gemini unavailable: %v", err)
		} else {
			caps.Captioner = gemini
			caps.Storyteller = gemini
		}
	}

	if apiKey == "" {
		edge, err := capability.NewEdgeTTS(os.Getenv("EDGE_TTS_VOICE"))
		if err != nil {
			log.Warnf("edge-tts unavailable, runs will skip audio: %v", err)
			caps.Synthesizer = nil
		} else {
			caps.Synthesizer = edge
		}
	}

	ffmpeg, err := capability.NewFFmpeg()
	if err != nil {
		log.Warnf("ffmpeg unavailable, runs will skip video: %v", err)
	} else {
		caps.Composer = ffmpeg
	}

	return caps
}
