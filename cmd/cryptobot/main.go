// Command cryptobot runs the crypto prediction Telegram bot.
package main

import (
	"log"
	_ "time/tzdata"

	"github.com/m3rciful/cryptobot/core/cmd"
	"github.com/m3rciful/cryptobot/internal/bot"
	"github.com/m3rciful/cryptobot/internal/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: bot.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
