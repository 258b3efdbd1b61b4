package main

import (
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/Shopify/sarama"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	streamjoin "github.com/pickme-go/stream-join"
	"github.com/pickme-go/stream-join/encoding"
	"github.com/pickme-go/stream-join/graph"
	"github.com/pickme-go/stream-join/internal/table"
	"github.com/pickme-go/stream-join/logger"
	"github.com/pickme-go/stream-join/producer"
	"github.com/pickme-go/stream-join/server"
	"github.com/pickme-go/stream-join/sources"
	"github.com/urfave/cli/v2"
)

const loggerKey = `logger`

func before(c *cli.Context) error {
	l, err := logger.NewLogger(c.String(`log`), c.Bool(`log-colors`))
	if err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[loggerKey] = l

	return nil
}

func loggerOf(c *cli.Context) log.Logger {
	if l, ok := c.App.Metadata[loggerKey].(log.Logger); ok {
		return l
	}
	return logger.DefaultLogger
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: `name`, Value: `join`, Usage: `join name used in logs, metrics and plans`},
		&cli.StringFlag{Name: `type`, Aliases: []string{`t`}, Value: `inner`, Usage: `inner, left_outer or full_outer`},
		&cli.StringFlag{Name: `left-key`, Aliases: []string{`k`}, Required: true, Usage: `join column of the left side`},
		&cli.StringFlag{Name: `right-key`, Usage: `join column of the right side, defaults to --left-key`},
		&cli.StringFlag{Name: `output`, Usage: `merge or flatten, defaults to merge for inner joins`},
		&cli.StringFlag{Name: `column`, Usage: `column holding the matches of flattened rows`},
		&cli.StringFlag{Name: `prefix`, Usage: `prefix of clashing right columns in merged rows`},
	}
}

func requestOf(c *cli.Context) table.Request {
	return table.Request{
		Name:     c.String(`name`),
		Type:     c.String(`type`),
		LeftKey:  c.String(`left-key`),
		RightKey: c.String(`right-key`),
		Output:   c.String(`output`),
		Column:   c.String(`column`),
		Prefix:   c.String(`prefix`),
	}
}

func joinCommand() *cli.Command {
	return &cli.Command{
		Name:      `join`,
		Usage:     `join two record files`,
		ArgsUsage: `LEFT RIGHT`,
		Flags: append(requestFlags(),
			&cli.StringFlag{Name: `format`, Aliases: []string{`f`}, Value: `table`, Usage: `table or json`},
			&cli.BoolFlag{Name: `stats`, Usage: `print evaluation counters after the rows`},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit(`join needs a LEFT and a RIGHT file`, 2)
			}

			left, err := fileSource(c.Args().Get(0))
			if err != nil {
				return err
			}

			right, err := fileSource(c.Args().Get(1))
			if err != nil {
				return err
			}

			rows, err := requestOf(c).Run(c.Context, left, right, streamjoin.WithLogger(loggerOf(c)))
			if err != nil {
				return err
			}
			defer rows.Close()

			if err := write(c.App.Writer, c.String(`format`), rows.All()); err != nil {
				return err
			}

			if c.Bool(`stats`) {
				table.RenderStats(c.App.Writer, c.String(`name`), rows.Stats())
			}

			return nil
		},
	}
}

func write(w io.Writer, format string, rows iter.Seq2[table.Record, error]) error {
	switch format {
	case `json`:
		_, err := table.WriteJSONLines(w, rows)
		return err
	case `table`:
		var all []table.Record
		for r, err := range rows {
			if err != nil {
				return err
			}
			all = append(all, r)
		}
		table.Render(w, all)
		return nil
	}

	return errors.New(fmt.Sprintf(`unknown format [%s]`, format))
}

// fileSource picks a reader by extension. A trailing .lz4 is decompressed.
func fileSource(path string) (iter.Seq2[table.Record, error], error) {
	name := strings.TrimSuffix(path, `.lz4`)

	switch {
	case strings.HasSuffix(name, `.csv`):
		return sources.CSVFile(path), nil
	case strings.HasSuffix(name, `.tsv`):
		return sources.CSVFile(path, sources.WithComma('\t')), nil
	case strings.HasSuffix(name, `.jsonl`), strings.HasSuffix(name, `.ndjson`):
		return sources.JSONLinesFile[table.Record](path), nil
	case strings.HasSuffix(path, `.parquet`):
		return sources.ParquetFile(path), nil
	}

	return nil, errors.New(fmt.Sprintf(`unsupported file [%s]`, path))
}

func kafkaCommand() *cli.Command {
	return &cli.Command{
		Name:  `kafka`,
		Usage: `join two topic partition ranges, optionally publishing the output`,
		Flags: append(requestFlags(),
			&cli.StringSliceFlag{Name: `brokers`, Value: cli.NewStringSlice(`localhost:9092`), EnvVars: []string{`STREAMJOIN_KAFKA_BROKERS`}},
			&cli.StringFlag{Name: `left`, Required: true, Usage: `left range as topic:partition:from:to, offsets may be oldest or newest`},
			&cli.StringFlag{Name: `right`, Required: true, Usage: `right range as topic:partition:from:to`},
			&cli.StringFlag{Name: `key-column`, Usage: `column receiving the message key`},
			&cli.StringFlag{Name: `value-encoder`, Value: `json`, Usage: `json or string`},
			&cli.StringFlag{Name: `sink-topic`, Usage: `publish output rows to this topic instead of printing them`},
			&cli.IntFlag{Name: `batch-size`, Value: 100, Usage: `messages per produce batch`},
			&cli.StringFlag{Name: `format`, Aliases: []string{`f`}, Value: `json`, Usage: `table or json`},
		),
		Action: runKafka,
	}
}

func runKafka(c *cli.Context) error {
	lg := loggerOf(c)

	leftRange, err := parseRange(c.String(`left`))
	if err != nil {
		return err
	}

	rightRange, err := parseRange(c.String(`right`))
	if err != nil {
		return err
	}

	valEnc, err := encoding.ByName(c.String(`value-encoder`))
	if err != nil {
		return err
	}

	conf := sarama.NewConfig()
	conf.ClientID = `stream-join`
	conf.Consumer.Return.Errors = true

	client, err := sarama.NewClient(c.StringSlice(`brokers`), conf)
	if err != nil {
		return errors.WithPrevious(err, `cannot connect to kafka`)
	}
	defer client.Close()

	if leftRange, err = leftRange.Resolve(client); err != nil {
		return err
	}
	if rightRange, err = rightRange.Resolve(client); err != nil {
		return err
	}

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return errors.WithPrevious(err, `cannot create consumer`)
	}
	defer consumer.Close()

	decode := sources.RecordDecoder(encoding.StringEncoder{}, valEnc(), c.String(`key-column`))
	lg.Info(fmt.Sprintf(`joining %s with %s`, leftRange, rightRange))

	req := requestOf(c)
	rows, err := req.Run(c.Context,
		sources.Kafka(c.Context, consumer, leftRange, decode),
		sources.Kafka(c.Context, consumer, rightRange, decode),
		streamjoin.WithLogger(lg))
	if err != nil {
		return err
	}
	defer rows.Close()

	topic := c.String(`sink-topic`)
	if topic == `` {
		return write(c.App.Writer, c.String(`format`), rows.All())
	}

	pConf := producer.NewConfig()
	pConf.BootstrapServers = c.StringSlice(`brokers`)
	pConf.Logger = lg
	p, err := producer.NewProducer(pConf)
	if err != nil {
		return err
	}
	defer p.Close()

	sink := producer.Sink[table.Record]{
		Topic:     topic,
		Key:       columnBytes(req.LeftKey),
		Encoder:   encoding.JSONEncoder{},
		BatchSize: c.Int(`batch-size`),
	}

	n, err := sink.Write(c.Context, p, rows.All())
	lg.Info(fmt.Sprintf(`published %d rows to %s`, n, topic))

	return err
}

// columnBytes keys output messages by a column; rows without it are keyless.
func columnBytes(column string) func(table.Record) ([]byte, error) {
	return func(r table.Record) ([]byte, error) {
		v, ok := r[column]
		if !ok || v == nil {
			return nil, nil
		}
		return []byte(fmt.Sprint(v)), nil
	}
}

// parseRange reads topic:partition:from:to.
func parseRange(s string) (sources.KafkaRange, error) {
	parts := strings.Split(s, `:`)
	if len(parts) != 4 || parts[0] == `` {
		return sources.KafkaRange{}, errors.New(fmt.Sprintf(`invalid range [%s], expected topic:partition:from:to`, s))
	}

	p, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return sources.KafkaRange{}, errors.WithPrevious(err, fmt.Sprintf(`invalid partition in [%s]`, s))
	}

	from, err := parseOffset(parts[2])
	if err != nil {
		return sources.KafkaRange{}, err
	}

	to, err := parseOffset(parts[3])
	if err != nil {
		return sources.KafkaRange{}, err
	}

	return sources.KafkaRange{Topic: parts[0], Partition: int32(p), From: from, To: to}, nil
}

func parseOffset(s string) (int64, error) {
	switch s {
	case `oldest`:
		return sarama.OffsetOldest, nil
	case `newest`:
		return sarama.OffsetNewest, nil
	}

	off, err := strconv.ParseInt(s, 10, 64)
	if err != nil || off < 0 {
		return 0, errors.New(fmt.Sprintf(`invalid offset [%s]`, s))
	}

	return off, nil
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  `plan`,
		Usage: `print the join plan as a graphviz dot graph`,
		Flags: append(requestFlags(),
			&cli.StringFlag{Name: `left-name`, Value: `left`},
			&cli.StringFlag{Name: `right-name`, Value: `right`},
		),
		Action: func(c *cli.Context) error {
			p, err := requestOf(c).Plan(c.String(`left-name`), c.String(`right-name`))
			if err != nil {
				return err
			}

			dot, err := graph.Render(p)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(c.App.Writer, dot)
			return err
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  `serve`,
		Usage: `serve joins over http`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: `host`, Value: `:8080`, EnvVars: []string{`STREAMJOIN_HTTP_HOST`}},
			&cli.Int64Flag{Name: `max-body-bytes`, Value: 32 << 20, EnvVars: []string{`STREAMJOIN_HTTP_MAX_BODY_BYTES`}},
		},
		Action: func(c *cli.Context) error {
			reporter := metrics.PrometheusReporter(metrics.ReporterConf{
				System: `stream_join`,
			})

			srv := server.NewServer(server.Config{
				Host:            c.String(`host`),
				MaxBodyBytes:    c.Int64(`max-body-bytes`),
				Logger:          loggerOf(c),
				MetricsReporter: reporter,
				Metrics:         true,
			})

			return srv.ListenAndServe(c.Context)
		},
	}
}
