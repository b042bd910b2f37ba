// Command mqtt-pub is a small interactive publish/subscribe tool for
// the mqclient library, grounded on
// PiotrWarzachowski-go-instagram-cli's urfave/cli/v3 command layout
// (one *cli.Command per action, wired under a root command in main).
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gonzalop/mqclient"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

func main() {
	cmd := &cli.Command{
		Name:    "mqtt-pub",
		Usage:   "publish and subscribe against an MQTT 3.1.1 broker",
		Version: "0.1.0",
		Commands: []*cli.Command{
			publishCommand,
			subscribeCommand,
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var commonFlags = []cli.Flag{
	&cli.StringFlag{Name: "host", Value: "localhost", Usage: "broker host"},
	&cli.IntFlag{Name: "port", Value: 1883, Usage: "broker port"},
	&cli.StringFlag{Name: "client-id", Usage: "MQTT client id (random if omitted)"},
	&cli.StringFlag{Name: "username", Usage: "CONNECT username"},
	&cli.BoolFlag{Name: "ask-password", Usage: "prompt for CONNECT password on the terminal"},
}

var publishCommand = &cli.Command{
	Name:  "publish",
	Usage: "publish one message and disconnect",
	Flags: append(commonFlags,
		&cli.StringFlag{Name: "topic", Required: true},
		&cli.StringFlag{Name: "message", Required: true},
		&cli.IntFlag{Name: "qos", Value: 0},
		&cli.BoolFlag{Name: "retain"},
	),
	Action: func(ctx context.Context, cmd *cli.Command) error {
		c, _, err := dialFromFlags(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		qos := mqclient.QoS(cmd.Int("qos"))
		if err := c.Publish(cmd.String("topic"), []byte(cmd.String("message")), qos, cmd.Bool("retain")); err != nil {
			return err
		}

		if qos > mqclient.AtMostOnce {
			// Drive a few loop iterations so the PUBACK is observed
			// before the connection is torn down.
			for i := 0; i < 50; i++ {
				if _, err := c.Step(ctx, true); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

var subscribeCommand = &cli.Command{
	Name:  "subscribe",
	Usage: "subscribe to a topic filter and print incoming messages",
	Flags: append(commonFlags,
		&cli.StringFlag{Name: "filter", Required: true},
		&cli.IntFlag{Name: "qos", Value: 0},
	),
	Action: func(ctx context.Context, cmd *cli.Command) error {
		c, _, err := dialFromFlags(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		qos := mqclient.QoS(cmd.Int("qos"))
		err = c.Subscribe(cmd.String("filter"), func(msg mqclient.Message) {
			fmt.Printf("%s: %s\n", msg.Topic, string(msg.Payload))
		}, qos)
		if err != nil {
			return err
		}

		return c.Run(ctx, true)
	},
}

func dialFromFlags(cmd *cli.Command) (*mqclient.Client, mqclient.ConnectionSettings, error) {
	password := ""
	if cmd.Bool("ask-password") {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, mqclient.ConnectionSettings{}, fmt.Errorf("reading password: %w", err)
		}
		password = string(b)
	}

	var opts []mqclient.Option
	opts = append(opts, mqclient.WithLogger(mqclient.NewSlogLogger(slog.Default())))
	if id := cmd.String("client-id"); id != "" {
		opts = append(opts, mqclient.WithClientID(id))
	}

	c := mqclient.New(cmd.String("host"), int(cmd.Int("port")), opts...)

	settings := mqclient.NewConnectionSettings(
		mqclient.WithCredentials(cmd.String("username"), password),
	)

	if err := c.Connect(settings, true); err != nil {
		return nil, mqclient.ConnectionSettings{}, err
	}
	return c, settings, nil
}
