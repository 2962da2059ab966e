// Command poictl builds and inspects tile ids and POI blobs, and reads or
// writes the local tile cache.
//
//	poictl tileid -lat 51.5074 -lon -0.1278 -z 12 -filter amenity=bar
//	poictl header <base58 id>
//	poictl encode [-osm] < poi.json
//	poictl decode <hex blob>
//	poictl get -lat 51.5074 -lon -0.1278 -radius 500 -filter amenity=bar
//	poictl put < tiles.json
//	poictl invalidate <base58 id>...
//	poictl purge
//	poictl publish -source osm -ids <base58 id>,...
//	poictl watch
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/poi-tile-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/poi-tile-cache/internal/cache/tilestore"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/record"
	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/tileid"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/config"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/model"
	"github.com/mohammed-shakir/poi-tile-cache/internal/hotness"
	"github.com/mohammed-shakir/poi-tile-cache/internal/invalidation"
	"github.com/mohammed-shakir/poi-tile-cache/internal/logger"
	"github.com/mohammed-shakir/poi-tile-cache/internal/remotecache"
	"github.com/mohammed-shakir/poi-tile-cache/internal/tiles"
	"github.com/mohammed-shakir/poi-tile-cache/pkg/invalidation/kafka"
)

var errUsage = errors.New("usage")

const usage = `usage: poictl <command> [flags]

commands:
  tileid      print the id of the tile holding a point
  header      print the zoom offset and category of an id (base-58 or data URI)
  encode      encode a POI read as JSON from stdin
  decode      decode a hex POI blob to JSON
  get         look up the tiles around a point
  put         store tiles read as JSON {"<id>": [poi, ...]} from stdin
  invalidate  drop tiles from the local cache
  purge       drop every tile of the local cache
  publish     send an invalidation event to Kafka
  watch       apply Kafka invalidation events to the local cache
`

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type env struct {
	cfg    config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "poictl: %v\n", err)
		return 1
	}
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   true,
		Cache:     cfg.CacheName,
		Component: "poictl",
	}, stderr)
	e := &env{cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr, log: logger.NewSlog(&zl)}

	cmds := map[string]func(context.Context, []string) error{
		"tileid":     e.tileID,
		"header":     e.header,
		"encode":     e.encode,
		"decode":     e.decode,
		"get":        e.get,
		"put":        e.put,
		"invalidate": e.invalidate,
		"purge":      e.purge,
		"publish":    e.publish,
		"watch":      e.watch,
	}
	cmd, ok := cmds[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "poictl: unknown command %q\n%s", args[0], usage)
		return 2
	}
	if err := cmd(ctx, args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(stderr, "poictl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func (e *env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func (e *env) codec() record.Codec {
	c := record.New(e.cfg.Domain)
	c.Description = e.cfg.DescriptionCodec
	return c
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) tileID(_ context.Context, args []string) error {
	fs := e.flags("tileid")
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")
	z := fs.Int("z", e.cfg.MaxZoom, "zoom")
	filter := fs.String("filter", "", "category filter, e.g. amenity=bar")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := model.ParseFilter(*filter)
	if err != nil {
		return err
	}
	t := tiles.At(*lat, *lon, *z)
	raw, err := tileid.Encoder{}.Encode(t.X, t.Y, t.Z, e.cfg.MinZoom, f.Category, f.Value)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%s\t%s\t%x\n", tileid.String(raw), t, raw)
	return nil
}

func (e *env) header(_ context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(e.stderr, "usage: poictl header <base58 id>")
		return errUsage
	}
	var raw []byte
	var err error
	if strings.HasPrefix(args[0], tileid.DataURIPrefix) {
		raw, err = tileid.ExtractBinary(args[0])
	} else {
		raw, err = tileid.Parse(args[0])
	}
	if err != nil {
		return err
	}
	zp, cat, err := tileid.ParseHeader(raw)
	if err != nil {
		return err
	}
	out := map[string]any{
		"zoom_offset": zp,
		"zoom":        e.cfg.MinZoom + zp,
		"category":    cat.String(),
	}
	if k, err := (tileid.Encoder{}).Decode(raw, e.cfg.MinZoom); err == nil {
		out["tile"] = model.Tile{X: k.X, Y: k.Y, Z: k.Z}
		out["value"] = k.Value
	}
	return e.printJSON(out)
}

func (e *env) encode(_ context.Context, args []string) error {
	fs := e.flags("encode")
	osm := fs.Bool("osm", false, "stdin holds raw OSM tags")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var p model.POI
	if *osm {
		var tags map[string]string
		if err := json.NewDecoder(e.stdin).Decode(&tags); err != nil {
			return fmt.Errorf("read tags: %w", err)
		}
		p = model.FromTags(tags)
	} else if err := json.NewDecoder(e.stdin).Decode(&p); err != nil {
		return fmt.Errorf("read poi: %w", err)
	}
	b, err := e.codec().Encode(p)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, hex.EncodeToString(b))
	return nil
}

func (e *env) decode(_ context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(e.stderr, "usage: poictl decode <hex blob>")
		return errUsage
	}
	b, err := hex.DecodeString(strings.TrimSpace(args[0]))
	if err != nil {
		return fmt.Errorf("hex: %w", err)
	}
	p, err := e.codec().Decode(b)
	if err != nil {
		return err
	}
	return e.printJSON(p)
}

// store connects to Redis and, when REMOTE_CACHE_URL is set, the remote cache.
func (e *env) store(ctx context.Context) (*tilestore.Store, func(), error) {
	cli, err := redisstore.New(ctx, e.cfg.RedisAddr,
		redisstore.WithReadTimeout(e.cfg.CacheOpTimeout),
		redisstore.WithWriteTimeout(e.cfg.CacheOpTimeout),
	)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{cli.Close}
	opts := tilestore.Options{
		Name:      e.cfg.CacheName,
		Ephemeral: e.cfg.CacheEphemeral,
		TTL:       e.cfg.LocalCacheTTL,
		MinZoom:   e.cfg.MinZoom,
		MaxZoom:   e.cfg.MaxZoom,
		Codec:     e.codec(),
		HotSize:   e.cfg.HotCacheSize,
		Logger:    e.log,
	}
	if e.cfg.HotAdmitScore > 0 {
		opts.Hotness = hotness.New(e.cfg.HotHalfLife, e.cfg.HotAdmitScore)
	}
	if e.cfg.RemoteCacheURL != "" {
		rc, err := remotecache.Dial(ctx, e.cfg.RemoteCacheURL,
			remotecache.WithTimeout(e.cfg.RemoteCacheTimeout),
			remotecache.WithLogger(e.log))
		if err != nil {
			_ = cli.Close()
			return nil, nil, err
		}
		opts.Remote = rc
		closers = append(closers, rc.Close)
	}
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	st, err := tilestore.New(cli, opts)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return st, closeAll, nil
}

func (e *env) get(ctx context.Context, args []string) error {
	fs := e.flags("get")
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")
	radius := fs.Float64("radius", 500, "search radius in meters")
	filters := fs.String("filter", "", "comma separated category filters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fl, err := model.ParseFilters(*filters)
	if err != nil {
		return err
	}
	if len(fl) == 0 {
		return errors.New("at least one -filter is required")
	}

	st, done, err := e.store(ctx)
	if err != nil {
		return err
	}
	defer done()

	z := tiles.ChooseZoom(*radius, *lat, e.cfg.MinZoom, e.cfg.MaxZoom)
	ids, err := st.ClientIDs(tiles.ForRadius(*lat, *lon, *radius, z), fl)
	if err != nil {
		return err
	}
	res, err := st.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	type row struct {
		ID     string      `json:"id"`
		Status string      `json:"status"`
		POIs   []model.POI `json:"pois,omitempty"`
	}
	out := make([]row, len(res))
	for i, r := range res {
		out[i] = row{ID: r.ID, Status: r.Status.String(), POIs: r.POIs}
	}
	return e.printJSON(out)
}

func (e *env) put(ctx context.Context, _ []string) error {
	var in map[string][]model.POI
	if err := json.NewDecoder(e.stdin).Decode(&in); err != nil {
		return fmt.Errorf("read tiles: %w", err)
	}
	for id := range in {
		if _, err := tileid.Parse(id); err != nil {
			return err
		}
	}
	st, done, err := e.store(ctx)
	if err != nil {
		return err
	}
	defer done()
	if err := st.Write(ctx, in); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "stored %d tiles\n", len(in))
	return nil
}

func (e *env) invalidate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(e.stderr, "usage: poictl invalidate <base58 id>...")
		return errUsage
	}
	st, done, err := e.store(ctx)
	if err != nil {
		return err
	}
	defer done()
	n, err := st.Invalidate(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "removed %d keys\n", n)
	return nil
}

func (e *env) purge(ctx context.Context, _ []string) error {
	st, done, err := e.store(ctx)
	if err != nil {
		return err
	}
	defer done()
	n, err := st.Purge(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "purged %d keys from %s\n", n, st.Namespace())
	return nil
}

// publish sends the event read from stdin, or one built from -ids.
func (e *env) publish(_ context.Context, args []string) error {
	fs := e.flags("publish")
	ids := fs.String("ids", "", "comma separated base-58 tile ids")
	source := fs.String("source", "poictl", "event source")
	op := fs.String("op", "invalidate", "insert|update|delete|invalidate")
	version := fs.Uint64("version", uint64(time.Now().UnixNano()), "event version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ev := invalidation.Event{Version: *version, Op: *op, TS: time.Now().UTC(), Source: *source}
	if *ids != "" {
		for _, id := range strings.Split(*ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ev.IDs = append(ev.IDs, id)
			}
		}
	} else if err := json.NewDecoder(e.stdin).Decode(&ev); err != nil {
		return fmt.Errorf("read event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return err
	}

	kc := kafka.FromEnv()
	p, err := kafka.NewPublisher(kc, 1, e.log)
	if err != nil {
		return err
	}
	if err := p.Publish(ev); err != nil {
		_ = p.Close()
		return err
	}
	if err := p.Close(); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "published version %d to %s\n", ev.Version, kc.Topic)
	return nil
}

func (e *env) watch(ctx context.Context, _ []string) error {
	st, done, err := e.store(ctx)
	if err != nil {
		return err
	}
	defer done()

	r := kafka.New(kafka.FromEnv(), st, kafka.Options{
		Logger:  e.log.With("component", "invalidation"),
		MinZoom: e.cfg.MinZoom,
	})
	if !r.Enabled() {
		return errors.New("set INVALIDATION_ENABLED=true and INVALIDATION_DRIVER=kafka")
	}
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return nil
}
