package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/artiss27/pricelist-sync/internal/catalog"
	conf "github.com/artiss27/pricelist-sync/internal/config"
	"github.com/artiss27/pricelist-sync/internal/db"
	"github.com/artiss27/pricelist-sync/internal/logs"
	"github.com/artiss27/pricelist-sync/internal/media"
	"github.com/artiss27/pricelist-sync/internal/parser"
	"github.com/artiss27/pricelist-sync/internal/pricelist"
)

var ver = "1.0.0"

const usage = `pricelist-sync %s
Usage: pricelist-sync <command> [flags]

Commands:
  media     register a supplier file
  template  create or list price templates
  preview   parse, match and calculate without writing anything
  automatch fuzzy-match the unmatched residue (candidates only)
  confirm   persist a match decision (single pair or all automatch hits)
  apply     commit confirmed matches to the catalog
  recalc    recompute base-currency prices from stored currency values
`

type app struct {
	log   zerolog.Logger
	cfg   *conf.Config
	dbh   *db.Handle
	media *media.Registry
	svc   *pricelist.Service
}

func main() {
	if len(os.Args) < 2 {
		fmt.Printf(usage, ver)
		os.Exit(2)
	}

	appDir := mustAppDataDir("pricelist-sync")

	cfgPath := filepath.Join(appDir, "config.json")
	cfg, firstRun, err := conf.LoadOrCreate(cfgPath)
	if err != nil {
		panic(err)
	}

	log := logs.New(filepath.Join(appDir, "app.log"), cfg.LogConsole, parseLevel(cfg.LogLevel))
	if firstRun {
		log.Info().Str("path", cfgPath).Msg("default config created")
	}

	dbh, err := db.Open(cfg.DBDriver, cfg.DBDSN, appDir)
	if err != nil {
		log.Fatal().Err(err).Msg("DB open error")
	}
	if err := dbh.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("DB migrate error")
	}
	if dbh.Path != "" {
		log.Info().Str("db", dbh.Path).Msg("DB ready")
	}
	sqlDB, _ := dbh.DB.DB()
	defer sqlDB.Close()

	mediaReg := media.NewRegistry(log, dbh.DB)
	store := catalog.NewGormStore(log, dbh.DB)
	svc := pricelist.NewService(log, dbh.DB, store, parser.NewRegistry(), mediaReg, pricelist.Options{
		BaseCurrency: cfg.BaseCurrency,
		BatchSize:    cfg.BatchSize,
	})

	a := &app{log: log, cfg: cfg, dbh: dbh, media: mediaReg, svc: svc}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "media":
		err = a.cmdMedia(args)
	case "template":
		err = a.cmdTemplate(args)
	case "preview":
		err = a.cmdPreview(ctx, args)
	case "automatch":
		err = a.cmdAutoMatch(ctx, args)
	case "confirm":
		err = a.cmdConfirm(ctx, args)
	case "apply":
		err = a.cmdApply(ctx, args)
	case "recalc":
		err = a.cmdRecalc(ctx, args)
	default:
		fmt.Printf(usage, ver)
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) cmdMedia(args []string) error {
	fs := flag.NewFlagSet("media", flag.ExitOnError)
	file := fs.String("file", "", "path to the supplier file")
	_ = fs.Parse(args)
	if *file == "" {
		return fmt.Errorf("media: -file is required")
	}
	rec, err := a.media.Register(*file)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func (a *app) cmdTemplate(args []string) error {
	fs := flag.NewFlagSet("template", flag.ExitOnError)
	list := fs.Bool("list", false, "list templates")
	name := fs.String("name", "", "template name (create)")
	startRow := fs.Int("start-row", 2, "first data row, 1-based")
	charsetLabel := fs.String("charset", "", "source file encoding label, empty = UTF-8")
	mapping := fs.String("mapping", "", `column mapping JSON, e.g. {"code":0,"name":1,"purchase_price":2}`)
	filters := fs.String("filters", "", "catalog filter JSON")
	modifiers := fs.String("modifiers", "", "price modifier list JSON")
	currencies := fs.String("currencies", "", "price type → currency JSON")
	availability := fs.String("availability", pricelist.AvailabilityDontChange, "dont_change | set_from_price | set_1000")
	zeroMissing := fs.Bool("zero-missing", false, "sweep stock to 0 for products missing from the list")
	defaultMedia := fs.String("media", "", "default media id")
	_ = fs.Parse(args)

	if *list {
		var tpls []db.PriceTemplate
		if err := a.dbh.DB.Order("id").Find(&tpls).Error; err != nil {
			return err
		}
		return printJSON(tpls)
	}

	if *name == "" {
		return fmt.Errorf("template: -name is required (or -list)")
	}
	tpl := db.PriceTemplate{
		Name:                *name,
		StartRow:            *startRow,
		Charset:             *charsetLabel,
		ColumnMapping:       *mapping,
		Filters:             *filters,
		Modifiers:           *modifiers,
		PriceCurrencies:     *currencies,
		AvailabilityAction:  *availability,
		ZeroMissingStock:    *zeroMissing,
		DefaultMediaID:      *defaultMedia,
		DuplicateCodePolicy: a.cfg.DuplicateCodePolicy,
	}
	if err := a.dbh.DB.Create(&tpl).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	a.log.Info().Uint("template_id", tpl.ID).Str("name", tpl.Name).Msg("template created")
	return printJSON(tpl)
}

func (a *app) cmdPreview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	templateID := fs.Uint("template", 0, "template id")
	mediaID := fs.String("media", "", "media id (default: template's media)")
	refresh := fs.Bool("refresh", false, "ignore the normalization cache")
	_ = fs.Parse(args)
	if *templateID == 0 {
		return fmt.Errorf("preview: -template is required")
	}
	preview, err := a.svc.Preview(ctx, *templateID, *mediaID, *refresh)
	if err != nil {
		return err
	}
	return printJSON(preview)
}

func (a *app) cmdAutoMatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("automatch", flag.ExitOnError)
	templateID := fs.Uint("template", 0, "template id")
	mediaID := fs.String("media", "", "media id")
	refresh := fs.Bool("refresh", false, "ignore the normalization cache")
	_ = fs.Parse(args)
	if *templateID == 0 {
		return fmt.Errorf("automatch: -template is required")
	}
	matches, still, err := a.svc.AutoMatch(ctx, *templateID, *mediaID, *refresh)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"candidates":      matches,
		"still_unmatched": still,
	})
}

func (a *app) cmdConfirm(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("confirm", flag.ExitOnError)
	templateID := fs.Uint("template", 0, "template id")
	productID := fs.Int64("product", 0, "product id (single confirmation)")
	code := fs.String("code", "", "supplier code (single confirmation)")
	auto := fs.Bool("auto", false, "confirm every automatch candidate")
	mediaID := fs.String("media", "", "media id (with -auto)")
	_ = fs.Parse(args)
	if *templateID == 0 {
		return fmt.Errorf("confirm: -template is required")
	}

	tpl, err := a.svc.Template(ctx, *templateID)
	if err != nil {
		return err
	}

	if *auto {
		matches, _, err := a.svc.AutoMatch(ctx, *templateID, *mediaID, false)
		if err != nil {
			return err
		}
		confirmed, total, err := a.svc.ConfirmAllMatches(ctx, tpl, matches)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"confirmed": confirmed, "mapping_size": total})
	}

	if *productID == 0 || *code == "" {
		return fmt.Errorf("confirm: -product and -code are required (or -auto)")
	}
	if err := a.svc.UpdateMatch(ctx, tpl, *productID, *code); err != nil {
		return err
	}
	return printJSON(map[string]any{"product_id": *productID, "supplier_code": *code})
}

func (a *app) cmdApply(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	templateID := fs.Uint("template", 0, "template id")
	mediaID := fs.String("media", "", "media id")
	refresh := fs.Bool("refresh", false, "ignore the normalization cache")
	actor := fs.String("actor", "cli", "who is applying")
	_ = fs.Parse(args)
	if *templateID == 0 {
		return fmt.Errorf("apply: -template is required")
	}
	stats, err := a.svc.Apply(ctx, *templateID, *mediaID, *refresh, *actor)
	if stats != nil {
		_ = printJSON(stats)
	}
	return err
}

func (a *app) cmdRecalc(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recalc", flag.ExitOnError)
	priceType := fs.String("type", "all", "purchase | retail | all")
	limit := fs.Int("limit", 0, "max products to scan, 0 = no limit")
	_ = fs.Parse(args)
	stats, err := a.svc.Recalculate(ctx, *priceType, *limit)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func mustAppDataDir(name string) string {
	base, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	p := filepath.Join(base, name)
	_ = os.MkdirAll(p, 0o755)
	return p
}
