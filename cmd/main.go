package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"dcaengine/cmd/executor"
	"dcaengine/cmd/keys"
	"dcaengine/src/database"
	"dcaengine/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "DCA Engine CMD"
	app.Usage = "The DCA engine command line interface"

	app.Commands = []cli.Command{
		serverCMD,
		executorCMD,
		keysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run API server",
		Action:      serverAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the custody API server`,
	}
	executorCMD = cli.Command{
		Name:        "executor",
		Usage:       "run Executor",
		Action:      executorAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the slice executor loop`,
	}
	keysCMD = cli.Command{
		Name:        "keys",
		Usage:       "hash an API key",
		Action:      keysAction,
		ArgsUsage:   "<key>",
		Flags:       []cli.Flag{},
		Description: `Hash an API key for the users table`,
	}
)

func serverAction(_ *cli.Context) error {

	logrus.Info("Starting server CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	server.StartServer(port)
	return nil
}

func executorAction(_ *cli.Context) error {

	logrus.Info("Starting executor CMD")

	sliceExecutor := &executor.Executor{}
	err := sliceExecutor.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func keysAction(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return fmt.Errorf("usage: keys <key>")
	}

	hashed, err := keys.Hash(key)
	if err != nil {
		return err
	}

	fmt.Println(hashed)
	return nil
}
