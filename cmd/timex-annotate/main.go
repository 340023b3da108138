// Command timex-annotate inserts inline TIMEX3 markers into XML verse text.
// Temporal expressions are found by a rule-based or remote NER detector and
// spliced into the selected elements, leaving all other content untouched.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/JuniperTimex/core/annotate"
	"github.com/FocuswithJustin/JuniperTimex/core/detect"
	"github.com/FocuswithJustin/JuniperTimex/core/detect/cache"
	"github.com/FocuswithJustin/JuniperTimex/core/detect/remote"
	"github.com/FocuswithJustin/JuniperTimex/core/detect/rules"
	"github.com/FocuswithJustin/JuniperTimex/core/sqlite"
	"github.com/FocuswithJustin/JuniperTimex/core/xml"
	"github.com/FocuswithJustin/JuniperTimex/internal/logging"
	"github.com/FocuswithJustin/JuniperTimex/internal/validation"
)

const version = "0.1.0"

// CLI defines the command-line interface for timex-annotate.
type CLI struct {
	Globals `embed:""`

	Config kong.ConfigFlag `help:"Load flag values from a JSON file"`

	File    FileCmd    `cmd:"" help:"Annotate an XML file (plain, .xz or .gz)"`
	String  StringCmd  `cmd:"" help:"Annotate XML given as an argument or on stdin and print it"`
	Rules   RulesGroup `cmd:"" help:"Inspect and try detection rules"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// Globals holds flags shared by all commands.
type Globals struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"TIMEX_LOG_LEVEL" help:"Log level"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" env:"TIMEX_LOG_FORMAT" help:"Log format"`

	Detector DetectorFlags `embed:"" group:"Detector"`

	Stdin  io.Reader `kong:"-"`
	Stdout io.Writer `kong:"-"`
}

// DetectorFlags selects and configures the entity detector.
type DetectorFlags struct {
	Backend  string        `name:"detector" default:"rules" enum:"rules,remote" env:"TIMEX_DETECTOR" help:"Detection backend"`
	Rules    string        `name:"rules" type:"path" env:"TIMEX_RULES" help:"Rules file (default: built-in rules)"`
	Endpoint string        `name:"endpoint" env:"TIMEX_ENDPOINT" help:"NER service URL for the remote detector"`
	Model    string        `name:"model" env:"TIMEX_MODEL" help:"Model name sent to the NER service"`
	Timeout  time.Duration `name:"timeout" default:"30s" help:"Per-request timeout for the remote detector"`
	Cache    string        `name:"cache" type:"path" env:"TIMEX_CACHE" help:"SQLite file caching detections"`
}

// AnnotateFlags configures target selection and marker output.
type AnnotateFlags struct {
	XPath  string            `name:"xpath" default:".//verse" env:"TIMEX_XPATH" help:"Target elements, relative to the root element"`
	NS     map[string]string `name:"ns" help:"Namespace prefixes for the XPath (prefix=uri)"`
	Label  string            `name:"label" default:"TIMEX" help:"Detector label that produces markers"`
	Marker string            `name:"marker" default:"TIMEX3" help:"Marker element name"`
	IDAttr string            `name:"id-attr" default:"tid" help:"Marker id attribute"`
}

func (f AnnotateFlags) options() []annotate.Option {
	return []annotate.Option{
		annotate.WithXPath(f.XPath),
		annotate.WithNamespaces(f.NS),
		annotate.WithLabel(f.Label),
		annotate.WithMarkerName(f.Marker),
		annotate.WithIDAttr(f.IDAttr),
	}
}

// start initializes logging and returns a context carrying a fresh run ID
// that is cancelled on interrupt.
func (g *Globals) start() (context.Context, context.CancelFunc, error) {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	logging.InitLogger(level, format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	return logging.WithRunID(ctx, logging.NewRunID()), cancel, nil
}

func (g *Globals) stdin() io.Reader {
	if g.Stdin != nil {
		return g.Stdin
	}
	return os.Stdin
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

// detector builds the configured detector. The returned close function
// releases the cache, if any.
func (g *Globals) detector(ctx context.Context) (detect.Detector, func() error, error) {
	f := g.Detector
	noop := func() error { return nil }

	var (
		d         detect.Detector
		namespace string
	)
	switch f.Backend {
	case "remote":
		rd, err := remote.New(ctx, remote.Config{
			Endpoint: f.Endpoint,
			Model:    f.Model,
			Timeout:  f.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		d = rd
		namespace = "remote:" + f.Endpoint + "#" + f.Model
		logging.DetectorReady(ctx, "remote", f.Endpoint, "model", f.Model)
	default:
		rd, err := loadRules(f.Rules)
		if err != nil {
			return nil, nil, err
		}
		d = rd
		namespace = "rules:" + rulesDigest(rd)
		logging.DetectorReady(ctx, "rules", fmt.Sprintf("%d rules", len(rd.Rules())), "file", f.Rules)
	}

	if f.Cache == "" {
		return d, noop, nil
	}
	cd, err := cache.New(d, cache.Config{
		Path:      f.Cache,
		Namespace: namespace,
		MemoTTL:   time.Hour,
		MemoSize:  10000,
	})
	if err != nil {
		return nil, nil, err
	}
	closeCache := func() error {
		st := cd.Stats()
		logging.LoggerFromContext(ctx, nil).Debug("detection cache",
			"memo_hits", st.MemoHits,
			"store_hits", st.StoreHits,
			"misses", st.Misses,
		)
		return cd.Close()
	}
	return cd, closeCache, nil
}

func loadRules(path string) (*rules.Detector, error) {
	if path == "" {
		return rules.Default(), nil
	}
	return rules.Load(path)
}

// rulesDigest identifies a rule set so that cached detections are
// invalidated when the rules change.
func rulesDigest(d *rules.Detector) string {
	var sb strings.Builder
	for _, r := range d.Rules() {
		sb.WriteString(r.String())
		sb.WriteString("\n")
	}
	return cache.Key("rules", sb.String())
}

// annotator builds the detector and an annotator around it.
func (g *Globals) annotator(ctx context.Context, flags AnnotateFlags) (*annotate.Annotator, func() error, error) {
	d, closeFn, err := g.detector(ctx)
	if err != nil {
		return nil, nil, err
	}
	a, err := annotate.New(d, flags.options()...)
	if err != nil {
		joinClose(&err, closeFn)
		return nil, nil, err
	}
	return a, closeFn, nil
}

// joinClose runs closeFn and adds any error it returns to *err.
func joinClose(err *error, closeFn func() error) {
	if cerr := closeFn(); cerr != nil {
		*err = errors.Join(*err, cerr)
	}
}

// FileCmd annotates one file.
type FileCmd struct {
	AnnotateFlags `embed:""`

	In  string `arg:"" help:"Input XML file" type:"existingfile"`
	Out string `arg:"" help:"Output path (.xz or .gz to compress)" type:"path"`
}

func (c *FileCmd) Run(g *Globals) (err error) {
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	ctx, cancel, err := g.start()
	if err != nil {
		return err
	}
	defer cancel()

	a, closeFn, err := g.annotator(ctx, c.AnnotateFlags)
	if err != nil {
		return err
	}
	defer joinClose(&err, closeFn)

	start := time.Now()
	st, err := a.AnnotateFileStats(ctx, c.In, c.Out)
	if err != nil {
		logging.DocumentFailed(ctx, c.In, err)
		return err
	}
	logging.DocumentAnnotated(ctx, c.In, st.Targets, st.Markers, time.Since(start),
		"segments", st.Segments,
		"skipped_markers", st.SkippedMarkers,
		"output", c.Out,
	)
	return nil
}

// StringCmd annotates a document passed inline or on stdin.
type StringCmd struct {
	AnnotateFlags `embed:""`

	XML string `arg:"" optional:"" help:"XML document (default: read stdin)"`
}

func (c *StringCmd) Run(g *Globals) (err error) {
	ctx, cancel, err := g.start()
	if err != nil {
		return err
	}
	defer cancel()

	a, closeFn, err := g.annotator(ctx, c.AnnotateFlags)
	if err != nil {
		return err
	}
	defer joinClose(&err, closeFn)

	var in io.Reader = g.stdin()
	if c.XML != "" {
		in = strings.NewReader(c.XML)
	}

	start := time.Now()
	st, err := a.AnnotateReader(ctx, in, g.stdout())
	if err != nil {
		logging.DocumentFailed(ctx, "-", err)
		return err
	}
	logging.DocumentAnnotated(ctx, "-", st.Targets, st.Markers, time.Since(start),
		"segments", st.Segments,
		"skipped_markers", st.SkippedMarkers,
	)
	return nil
}

// RulesGroup contains rule inspection commands.
type RulesGroup struct {
	Check  RulesCheckCmd  `cmd:"" help:"Compile a rules file and list its rules"`
	Show   RulesShowCmd   `cmd:"" help:"Print the built-in rules"`
	Detect RulesDetectCmd `cmd:"" help:"Run the rules detector on a text"`
}

// RulesCheckCmd compiles a rules file.
type RulesCheckCmd struct {
	File string `arg:"" optional:"" help:"Rules file (default: --rules or built-in rules)" type:"existingfile"`
}

func (c *RulesCheckCmd) Run(g *Globals) error {
	path := c.File
	if path == "" {
		path = g.Detector.Rules
	}
	d, err := loadRules(path)
	if err != nil {
		return err
	}
	out := g.stdout()
	for _, r := range d.Rules() {
		fmt.Fprintf(out, "%4d  %s\n", r.Line, r)
	}
	fmt.Fprintf(out, "%d rules OK\n", len(d.Rules()))
	return nil
}

// RulesShowCmd prints the built-in rules file.
type RulesShowCmd struct{}

func (c *RulesShowCmd) Run(g *Globals) error {
	_, err := g.stdout().Write(rules.DefaultSource())
	return err
}

// RulesDetectCmd prints the spans the rules detector finds in a text.
type RulesDetectCmd struct {
	Text string `arg:"" help:"Text to scan"`
}

func (c *RulesDetectCmd) Run(g *Globals) error {
	d, err := loadRules(g.Detector.Rules)
	if err != nil {
		return err
	}
	spans, err := d.Detect(context.Background(), c.Text)
	if err != nil {
		return err
	}
	out := g.stdout()
	for _, s := range spans {
		fmt.Fprintf(out, "%d\t%d\t%s\t%s\n", s.Start, s.End, s.Label, s.Text(c.Text))
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(g.stdout(), "timex-annotate version %s\n", version)
	fmt.Fprintf(g.stdout(), "marker: %s, sqlite: %s (%s)\n", xml.DefaultMarkerName, info.DriverType, info.Package)
	return nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	opts := []kong.Option{
		kong.Name("timex-annotate"),
		kong.Description("Insert inline TIMEX3 temporal markers into XML verse text"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Configuration(kong.JSON, "~/.config/timex-annotate.json"),
		kong.Bind(&cli.Globals),
	}
	return kong.New(cli, append(opts, options...)...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}
