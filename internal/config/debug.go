package config

import "os"

func IsDebug() bool {
	return os.Getenv("RELAYBOT_DEBUG") == "1"
}
