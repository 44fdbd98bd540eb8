package conf

import "github.com/ringneck/libwebphone/internal/logger"

// GetLogger returns the config module logger. It is fetched from the global
// logger each time because the central logger is installed after Load.
func GetLogger() logger.Logger {
	return logger.Global().Module("conf")
}
