package main

import (
	"flag"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ericselin/cacheproxy"
	"github.com/ericselin/cacheproxy/cache"
)

var (
	configFilenameFlag string
	portFlag           int
	adminFlag          string
	verbosityTraceFlag bool
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&adminFlag, "admin", "", "Address for the management endpoint (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	var config cacheproxy.FileConfig
	if configFilenameFlag != "" {
		var err error
		config, err = cacheproxy.LoadConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
	}

	if portFlag != 0 {
		config.Port = portFlag
	}
	if adminFlag != "" {
		config.Admin = adminFlag
	}

	// a bare positional port argument takes precedence over everything
	if arg := flag.Arg(0); arg != "" {
		port, err := strconv.Atoi(arg)
		if err != nil || port <= 0 || port > 65535 {
			log.Fatal().Str("port", arg).Msg("Invalid port argument")
		}
		config.Port = port
	}

	if config.Cache.CapacityBytes == 0 {
		config.Cache.CapacityBytes = cacheproxy.DefaultCapacityBytes
	}
	if config.Cache.MaxEntryBytes == 0 {
		config.Cache.MaxEntryBytes = cacheproxy.DefaultMaxEntryBytes
	}

	lru := cache.NewLRU(config.Cache.CapacityBytes, config.Cache.MaxEntryBytes)

	proxy := cacheproxy.New(cacheproxy.Config{
		Port:          config.Port,
		MaxClients:    config.MaxClients,
		Cache:         lru,
		MaxEntryBytes: config.Cache.MaxEntryBytes,
	})

	if config.Admin != "" {
		go func() {
			log.Info().Str("addr", config.Admin).Msg("Management endpoint listening")
			if err := http.ListenAndServe(config.Admin, cacheproxy.NewAdminHandler(lru)); err != nil {
				log.Error().Err(err).Msg("Management endpoint failed")
			}
		}()
	}

	if err := proxy.Run(); err != nil {
		log.Fatal().Err(err).Msg("Proxy failed")
	}
}
