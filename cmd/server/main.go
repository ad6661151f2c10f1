package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/townsquare/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8081,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	demoTownID = configVar[string]{
		envKey:       "DEMO_TOWN_ID",
		flagKey:      "demo-town-id",
		defaultValue: "",
	}
	townCapacity = configVar[int]{
		envKey:       "TOWN_CAPACITY",
		flagKey:      "town-capacity",
		defaultValue: 50,
	}
	streamingAPIURL = configVar[string]{
		envKey:       "STREAMING_API_URL",
		flagKey:      "streaming-api-url",
		defaultValue: "",
	}
	videoAPIKey = configVar[string]{
		envKey:       "VIDEO_API_KEY",
		flagKey:      "video-api-key",
		defaultValue: "",
	}
	videoAPISecret = configVar[string]{
		envKey:       "VIDEO_API_SECRET",
		flagKey:      "video-api-secret",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(demoTownID.flagKey, demoTownID.defaultValue, "Pinned demo town ID")
	pflag.Int(townCapacity.flagKey, townCapacity.defaultValue, "Maximum number of participants in a town")
	pflag.String(streamingAPIURL.flagKey, streamingAPIURL.defaultValue, "Streaming service API base URL")
	pflag.String(videoAPIKey.flagKey, videoAPIKey.defaultValue, "Video provider API key")
	pflag.String(videoAPISecret.flagKey, videoAPISecret.defaultValue, "Video provider API secret")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(demoTownID.flagKey, demoTownID.envKey)
	viper.BindEnv(townCapacity.flagKey, townCapacity.envKey)
	viper.BindEnv(streamingAPIURL.flagKey, streamingAPIURL.envKey)
	viper.BindEnv(videoAPIKey.flagKey, videoAPIKey.envKey)
	viper.BindEnv(videoAPISecret.flagKey, videoAPISecret.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(demoTownID.flagKey, demoTownID.defaultValue)
	viper.SetDefault(townCapacity.flagKey, townCapacity.defaultValue)
	viper.SetDefault(streamingAPIURL.flagKey, streamingAPIURL.defaultValue)
	viper.SetDefault(videoAPIKey.flagKey, videoAPIKey.defaultValue)
	viper.SetDefault(videoAPISecret.flagKey, videoAPISecret.defaultValue)

	config := &app.AppConfig{
		Host:            viper.GetString(host.flagKey),
		Port:            viper.GetInt(port.flagKey),
		LogLevel:        viper.GetString(logLevel.flagKey),
		DemoTownID:      viper.GetString(demoTownID.flagKey),
		TownCapacity:    viper.GetInt(townCapacity.flagKey),
		StreamingAPIURL: viper.GetString(streamingAPIURL.flagKey),
		VideoAPIKey:     viper.GetString(videoAPIKey.flagKey),
		VideoAPISecret:  viper.GetString(videoAPISecret.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
