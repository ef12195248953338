package sheetboard

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const defaultChartHeight = "280px"

// ChartRenderer renders the status and workload charts shown above the
// board.
type ChartRenderer interface {
	StatusChart(counts StatusCounts, title string) (string, error)
	WorkloadChart(load []PersonLoad, title string) (string, error)
}

// PersonLoad counts visible rows per person and bucket.
type PersonLoad struct {
	Person string       `json:"person"`
	Counts StatusCounts `json:"counts"`
}

// EChartsRenderer renders charts with go-echarts.
type EChartsRenderer struct {
	cache      RenderCache
	theme      string
	assetsHost string
}

// EChartsOption customizes the renderer.
type EChartsOption func(*EChartsRenderer)

// WithChartCache injects a render cache; nil disables caching.
func WithChartCache(cache RenderCache) EChartsOption {
	return func(r *EChartsRenderer) {
		r.cache = cache
	}
}

// WithChartTheme sets the ECharts theme (defaults to Westeros).
func WithChartTheme(theme string) EChartsOption {
	return func(r *EChartsRenderer) {
		r.theme = theme
	}
}

// WithChartAssetsHost rewrites the host ECharts JS is loaded from.
func WithChartAssetsHost(host string) EChartsOption {
	return func(r *EChartsRenderer) {
		r.assetsHost = host
	}
}

// NewEChartsRenderer builds a chart renderer.
func NewEChartsRenderer(options ...EChartsOption) *EChartsRenderer {
	r := &EChartsRenderer{
		cache: NewChartCache(5 * time.Minute),
		theme: types.ThemeWesteros,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// StatusChart renders a pie of the three status buckets.
func (r *EChartsRenderer) StatusChart(counts StatusCounts, title string) (string, error) {
	render := func() (string, error) {
		pie := charts.NewPie()
		pie.SetGlobalOptions(r.globalOptions(title)...)
		pie.AddSeries("Estado", []opts.PieData{
			{Name: "Pendientes", Value: counts.Pending},
			{Name: "En curso", Value: counts.InProgress},
			{Name: "Cumplidas", Value: counts.Completed},
		})
		pie.SetSeriesOptions(charts.WithPieChartOpts(opts.PieChart{Radius: []string{"40%", "70%"}}))
		return renderChart(pie)
	}
	return r.cached(chartKey("status", struct {
		Counts StatusCounts
		Title  string
	}{counts, title}), render)
}

// WorkloadChart renders a stacked bar of buckets per person.
func (r *EChartsRenderer) WorkloadChart(load []PersonLoad, title string) (string, error) {
	if len(load) == 0 {
		return "", fmt.Errorf("sheetboard: workload chart needs at least one person")
	}
	render := func() (string, error) {
		bar := charts.NewBar()
		bar.SetGlobalOptions(r.globalOptions(title)...)
		people := make([]string, len(load))
		pending := make([]opts.BarData, len(load))
		progress := make([]opts.BarData, len(load))
		done := make([]opts.BarData, len(load))
		for i, p := range load {
			people[i] = p.Person
			pending[i] = opts.BarData{Value: p.Counts.Pending}
			progress[i] = opts.BarData{Value: p.Counts.InProgress}
			done[i] = opts.BarData{Value: p.Counts.Completed}
		}
		bar.SetXAxis(people).
			AddSeries("Pendientes", pending, charts.WithBarChartOpts(opts.BarChart{Stack: "estado"})).
			AddSeries("En curso", progress, charts.WithBarChartOpts(opts.BarChart{Stack: "estado"})).
			AddSeries("Cumplidas", done, charts.WithBarChartOpts(opts.BarChart{Stack: "estado"}))
		return renderChart(bar)
	}
	return r.cached(chartKey("workload", struct {
		Load  []PersonLoad
		Title string
	}{load, title}), render)
}

func (r *EChartsRenderer) cached(key string, render func() (string, error)) (string, error) {
	if r.cache == nil {
		return render()
	}
	return r.cache.GetOrRender(key, render)
}

func (r *EChartsRenderer) globalOptions(title string) []charts.GlobalOpts {
	initOpts := opts.Initialization{
		Theme:  r.theme,
		Width:  "100%",
		Height: defaultChartHeight,
	}
	if r.assetsHost != "" {
		initOpts.AssetsHost = r.assetsHost
	}
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(initOpts),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func renderChart(renderable interface{ Render(io.Writer) error }) (string, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WorkloadByPerson counts rows per person value in first-seen order. Rows
// with an empty person are grouped under "Sin asignar".
func WorkloadByPerson(rows []Row, cols Columns) []PersonLoad {
	if cols.Person == NoColumn {
		return nil
	}
	index := map[string]int{}
	var out []PersonLoad
	for _, row := range rows {
		person := strings.TrimSpace(row.Cell(cols.Person).String())
		if person == "" {
			person = "Sin asignar"
		}
		i, ok := index[person]
		if !ok {
			i = len(out)
			index[person] = i
			out = append(out, PersonLoad{Person: person})
		}
		bucket := StatusPending
		if cols.Status != NoColumn {
			bucket = ClassifyStatus(row.Cell(cols.Status).String())
		}
		out[i].Counts.add(bucket)
	}
	return out
}
