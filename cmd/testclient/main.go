package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dasmlab/neurotranslate/pkg/service"
	"github.com/sirupsen/logrus"
)

var (
	serverAddr = flag.String("addr", "localhost:50051", "gRPC server address")
	sourceLang = flag.String("source", "auto", "Source language code (e.g., en, fr, auto)")
	targetLang = flag.String("target", "en", "Target language code (e.g., en, fr)")
	textFile   = flag.String("file", "", "Path to a .txt file to translate in file mode")
	text       = flag.String("text", "", "Text to translate (if file not provided)")
	timeout    = flag.Duration("timeout", 2*time.Minute, "Request timeout")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	mode := service.ModeText
	var textToTranslate string
	if *textFile != "" {
		data, err := os.ReadFile(*textFile)
		if err != nil {
			logger.WithError(err).Fatalf("Failed to read file: %s", *textFile)
		}
		textToTranslate = string(data)
		mode = service.ModeFile
	} else if *text != "" {
		textToTranslate = *text
	} else {
		logger.Fatal("Either -file or -text must be provided")
	}

	logger.WithFields(logrus.Fields{
		"server":      *serverAddr,
		"source_lang": *sourceLang,
		"target_lang": *targetLang,
		"mode":        mode,
		"text_length": len(textToTranslate),
	}).Info("Connecting to neurotranslate server...")

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to server")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	healthResp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: service.TranslatorServiceName,
	})
	if err != nil {
		logger.WithError(err).Fatal("Health check failed")
	}
	logger.WithFields(logrus.Fields{
		"status": healthResp.GetStatus().String(),
	}).Info("Server health")

	client := service.NewTranslatorClient(conn)

	if *sourceLang == "auto" {
		detectResp, err := client.DetectLanguage(ctx, textToTranslate)
		if err != nil {
			logger.WithError(err).Warn("Language detection failed")
		} else {
			logger.WithFields(logrus.Fields{
				"code": detectResp.GetFields()["code"].GetStringValue(),
				"name": detectResp.GetFields()["name"].GetStringValue(),
			}).Info("Detected source language")
		}
	}

	logger.Info("Translating text...")
	startTime := time.Now()

	resp, err := client.Translate(ctx, textToTranslate, *sourceLang, *targetLang, mode)
	if err != nil {
		logger.WithError(err).Fatal("Translation failed")
	}
	duration := time.Since(startTime)
	fields := resp.GetFields()

	separator := strings.Repeat("=", 80)
	dashLine := strings.Repeat("-", 80)

	fmt.Println()
	fmt.Println(separator)
	fmt.Println("TRANSLATION RESULTS")
	fmt.Println(separator)
	fmt.Printf("\nSource Language: %s\n", fields["source"].GetStringValue())
	fmt.Printf("Target Language: %s\n", fields["target"].GetStringValue())
	fmt.Printf("Model: %s (fallback: %t)\n", fields["model_id"].GetStringValue(), fields["fallback"].GetBoolValue())
	fmt.Printf("Translation Time: %.2f seconds\n", duration.Seconds())
	fmt.Println()
	fmt.Println(dashLine)
	fmt.Println("ORIGINAL TEXT:")
	fmt.Println(dashLine)
	fmt.Println(textToTranslate)
	fmt.Println()
	fmt.Println(dashLine)
	fmt.Println("TRANSLATED TEXT:")
	fmt.Println(dashLine)
	fmt.Println(fields["translation"].GetStringValue())
	fmt.Println()
	fmt.Println(separator)

	logger.WithFields(logrus.Fields{
		"duration_seconds": duration.Seconds(),
		"request_id":       fields["request_id"].GetStringValue(),
	}).Info("Translation completed successfully")
}
