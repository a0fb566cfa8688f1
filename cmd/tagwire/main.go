package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"github.com/tagwire/tagwire/registry"
	"github.com/tagwire/tagwire/schema"
	"github.com/tagwire/tagwire/wire"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	app := cli.NewApp()
	app.Name = "tagwire"
	app.Usage = "descriptor-driven TLV wire codec tool"

	schemaFlags := []cli.Flag{
		cli.StringFlag{Name: "schema, s", Usage: "path to a .proto file or directory"},
		cli.StringFlag{Name: "type, t", Usage: "message type name"},
		cli.StringFlag{Name: "in, i", Usage: "input file"},
		cli.StringFlag{Name: "out, o", Usage: "output file (default stdout)"},
		cli.BoolFlag{Name: "verbose, v", Usage: "debug logging"},
	}

	app.Commands = []cli.Command{
		{
			Name:   "decode",
			Usage:  "decode wire bytes to a JSON projection",
			Flags:  schemaFlags,
			Action: decodeAction,
		},
		{
			Name:   "encode",
			Usage:  "encode a JSON projection to wire bytes",
			Flags:  schemaFlags,
			Action: encodeAction,
		},
		{
			Name:   "roundtrip",
			Usage:  "decode wire bytes, re-encode, and compare",
			Flags:  schemaFlags,
			Action: roundtripAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func setup(ctx *cli.Context) (*registry.Registry, *schema.Descriptor, []byte, error) {
	if !ctx.Bool("verbose") {
		log = log.Level(zerolog.InfoLevel)
	}
	reg := registry.NewRegistry()
	reg.SetLogger(log)

	if err := reg.LoadSchema(ctx.String("schema")); err != nil {
		return nil, nil, nil, err
	}
	desc, err := reg.Descriptor(ctx.String("type"))
	if err != nil {
		return nil, nil, nil, err
	}
	input, err := os.ReadFile(ctx.String("in"))
	if err != nil {
		return nil, nil, nil, err
	}
	return reg, desc, input, nil
}

func emit(ctx *cli.Context, data []byte) error {
	if out := ctx.String("out"); out != "" {
		return os.WriteFile(out, data, 0o644)
	}
	_, err := os.Stdout.Write(data)
	return err
}

func decodeAction(ctx *cli.Context) error {
	reg, desc, input, err := setup(ctx)
	if err != nil {
		return err
	}

	arena := wire.NewArena()
	defer arena.Release()

	value, err := wire.DecodeMessage(input, desc, reg, arena)
	if err != nil {
		return err
	}
	log.Debug().Int("bytes", len(input)).Int64("arena", arena.Used()).Msg("decoded")

	projected, err := project(value, desc, reg)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(projected, "", "  ")
	if err != nil {
		return err
	}
	return emit(ctx, append(out, '\n'))
}

func encodeAction(ctx *cli.Context) error {
	reg, desc, input, err := setup(ctx)
	if err != nil {
		return err
	}

	var projected map[string]interface{}
	if err := json.Unmarshal(input, &projected); err != nil {
		return fmt.Errorf("input is not valid JSON: %w", err)
	}
	value, err := unproject(projected, desc, reg)
	if err != nil {
		return err
	}

	encoded, err := wire.EncodeMessage(value, desc, reg)
	if err != nil {
		return err
	}
	log.Debug().Int("bytes", len(encoded)).Msg("encoded")
	return emit(ctx, encoded)
}

func roundtripAction(ctx *cli.Context) error {
	reg, desc, input, err := setup(ctx)
	if err != nil {
		return err
	}

	arena := wire.NewArena()
	defer arena.Release()

	value, err := wire.DecodeMessage(input, desc, reg, arena)
	if err != nil {
		return err
	}
	reencoded, err := wire.EncodeMessage(value, desc, reg)
	if err != nil {
		return err
	}

	if bytes.Equal(input, reencoded) {
		log.Info().Int("bytes", len(input)).Msg("roundtrip: byte-identical")
		return nil
	}
	log.Warn().Int("in", len(input)).Int("out", len(reencoded)).
		Msg("roundtrip: bytes differ (field order or skipped unknowns)")
	return emit(ctx, reencoded)
}
