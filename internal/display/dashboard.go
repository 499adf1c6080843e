package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amirphl/marketboard/internal/query"
	"github.com/amirphl/marketboard/internal/tfutils"
	"github.com/amirphl/marketboard/internal/utils"
)

const DefaultKlineRows = 10

var (
	ErrUnknownCommand = errors.New("unknown command")
	errQuit           = errors.New("quit")
)

const helpText = "commands: r (retry)  s <symbol>  i <interval>  f <term>  q (quit)"

// Dashboard is the terminal rendition of the pair list and the detail view of
// the selected pair. It redraws on every state change of its queries.
type Dashboard struct {
	out    io.Writer
	pairs  *query.TradingPairsQuery
	book   *query.OrderBookQuery
	klines *query.KlinesQuery
	search *query.Search
	rows   int
	logger *zap.Logger

	mu sync.Mutex
}

func NewDashboard(out io.Writer, pairs *query.TradingPairsQuery, book *query.OrderBookQuery, klines *query.KlinesQuery, search *query.Search) *Dashboard {
	return &Dashboard{
		out:    out,
		pairs:  pairs,
		book:   book,
		klines: klines,
		search: search,
		rows:   DefaultKlineRows,
		logger: utils.GetLogger(),
	}
}

// Run mounts the queries and redraws until ctx is done or a quit command
// arrives. commands may be nil.
func (d *Dashboard) Run(ctx context.Context, commands <-chan string) error {
	pairsCh := d.pairs.Subscribe()
	defer d.pairs.Unsubscribe(pairsCh)
	bookCh := d.book.Subscribe()
	defer d.book.Unsubscribe(bookCh)
	klinesCh := d.klines.Subscribe()
	defer d.klines.Unsubscribe(klinesCh)

	d.pairs.Start(ctx)
	defer d.pairs.Stop()
	d.book.Start(ctx)
	defer d.book.Stop()
	d.klines.Start(ctx)
	defer d.klines.Stop()

	d.logger.Info("Dashboard | started", zap.String("symbol", d.book.Symbol()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-pairsCh:
			d.search.SetSource(st.Data)
		case <-bookCh:
		case <-klinesCh:
		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			err := d.Handle(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				d.logger.Warn("Dashboard | command failed", zap.String("command", line), zap.Error(err))
			}
		}
		if err := d.Render(); err != nil {
			return err
		}
	}
}

// Handle applies one command line.
func (d *Dashboard) Handle(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return nil
	case "q", "quit":
		return errQuit
	case "r", "retry":
		return d.retry(ctx)
	case "s", "symbol":
		symbol := strings.ToUpper(arg)
		d.book.SetSymbol(symbol)
		d.klines.SetSymbol(symbol)
		return nil
	case "i", "interval":
		if !tfutils.IsValidInterval(arg) {
			return fmt.Errorf("unsupported interval %q", arg)
		}
		d.klines.SetInterval(arg)
		return nil
	case "f", "find":
		d.search.SetTerm(arg)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}

func (d *Dashboard) retry(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, refetch := range []func(context.Context) error{d.pairs.Refetch, d.book.Refetch, d.klines.Refetch} {
		refetch := refetch
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := refetch(ctx); err != nil && !errors.Is(err, query.ErrDisabled) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Render draws the whole dashboard once.
func (d *Dashboard) Render() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	symbol, interval, _ := d.klines.Params()
	term := d.search.Term()

	var b strings.Builder
	fmt.Fprintf(&b, "== marketboard  %s  %s  search=%q  %s ==\n",
		DisplaySymbol(symbol), interval, term, time.Now().Format(time.TimeOnly))

	if err := RenderPairs(&b, d.pairs.State(), d.search.Filtered(), term); err != nil {
		return err
	}
	b.WriteByte('\n')
	if symbol == "" {
		b.WriteString("select a trading pair to view details\n")
	} else {
		if err := RenderOrderBook(&b, d.book.State()); err != nil {
			return err
		}
		b.WriteByte('\n')
		if err := RenderKlines(&b, d.klines.State(), interval, d.rows); err != nil {
			return err
		}
	}
	b.WriteString(helpText + "\n\n")

	_, err := io.WriteString(d.out, b.String())
	return err
}
