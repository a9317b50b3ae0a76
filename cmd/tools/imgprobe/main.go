// imgprobe 用服务同一套候选规则解析图片 id，打印每次尝试与最终状态。
//
//	go run ./cmd/tools/imgprobe -kind face 1413 c170682
//	go run ./cmd/tools/imgprobe -kind news -story 131011
//	go run ./cmd/tools/imgprobe -gallery 5012
//	go run ./cmd/tools/imgprobe -latest 5
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"cricchat.local/internal/cricbuzz"
	"cricchat.local/internal/imageresolve"
	"cricchat.local/internal/platform/config"
	"github.com/montanaflynn/stats"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

type probe struct {
	kind string
	id   string
}

// printer 并发探测时保证每行完整输出
type printer struct {
	mu        sync.Mutex
	latencies []float64
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Printf(format+"\n", args...)
}

func (p *printer) observe(d time.Duration) {
	p.mu.Lock()
	p.latencies = append(p.latencies, float64(d.Milliseconds()))
	p.mu.Unlock()
}

func (p *printer) Attempt(url string, err error) {
	if err != nil {
		p.line("  attempt %s: %v", url, err)
		return
	}
	p.line("  attempt %s: ok", url)
}

func (p *printer) Settled(id string, st imageresolve.State) {
	p.line("  settled %q: %s %s", id, st.Kind, st.URL)
}

// latestCovers 首页新闻与图集的封面 id，只取前 n 个
func latestCovers(ctx context.Context, api *cricbuzz.Client, n int) []probe {
	var out []probe
	collect := func(data []byte, path string) {
		count := 0
		gjson.GetBytes(data, path).ForEach(func(_, v gjson.Result) bool {
			if id := v.String(); id != "" {
				out = append(out, probe{kind: "news", id: id})
				count++
			}
			return count < n
		})
	}
	if stories, err := api.NewsIndex(ctx, "index"); err != nil {
		log.Printf("news index: %v", err)
	} else {
		collect(stories, "storyList.#.story.imageId")
	}
	if galleries, err := api.PhotosIndex(ctx); err != nil {
		log.Printf("photos index: %v", err)
	} else {
		collect(galleries, "photoGalleryInfoList.#.photoGalleryInfo.imageId")
	}
	return out
}

func main() {
	kind := flag.String("kind", "face", "image kind for positional ids: face or news")
	fallback := flag.String("fallback", "", "fallback URL tried after every candidate fails")
	story := flag.String("story", "", "news story id; probes its cover image")
	gallery := flag.String("gallery", "", "photo gallery id; probes every photo in it")
	latest := flag.Int("latest", 0, "probe cover images of the newest N stories and photo galleries")
	concurrency := flag.Int("c", 4, "parallel probes")
	timeout := flag.Duration("timeout", 0, "per-image timeout (default IMAGE_TIMEOUT)")
	flag.Parse()

	if *kind != "face" && *kind != "news" {
		log.Fatalf("unknown kind %q", *kind)
	}

	cfg := config.Load()
	if *timeout <= 0 {
		*timeout = cfg.ImageTimeout
	}
	api := cricbuzz.New(cfg.CricbuzzBaseURL, cfg.RapidAPIKey, cfg.RapidAPIHost, cfg.UpstreamTimeout)

	probes := make([]probe, 0, flag.NArg())
	for _, id := range flag.Args() {
		probes = append(probes, probe{kind: *kind, id: id})
	}
	ctx := context.Background()
	if *story != "" {
		detail, err := api.NewsDetail(ctx, *story)
		if err != nil {
			log.Fatalf("news detail %s: %v", *story, err)
		}
		cover := gjson.GetBytes(detail, "coverImage.id").String()
		if cover == "" {
			log.Fatalf("news %s has no cover image", *story)
		}
		probes = append(probes, probe{kind: "news", id: cover})
	}
	if *gallery != "" {
		detail, err := api.PhotoGallery(ctx, *gallery)
		if err != nil {
			log.Fatalf("photo gallery %s: %v", *gallery, err)
		}
		gjson.GetBytes(detail, "photoGalleryDetails.#.imageId").ForEach(func(_, v gjson.Result) bool {
			probes = append(probes, probe{kind: "news", id: v.String()})
			return true
		})
	}
	if *latest > 0 {
		probes = append(probes, latestCovers(ctx, api, *latest)...)
	}
	if len(probes) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	out := &printer{}
	blobs := imageresolve.NewBlobStore("blob:")
	var loaderOpts []imageresolve.LoaderOption
	loaderOpts = append(loaderOpts, imageresolve.WithMaxBytes(cfg.ImageMaxBytes))
	if cfg.UpstreamConfigured() {
		loaderOpts = append(loaderOpts, imageresolve.WithHeaders(cricbuzz.AuthHeaders(cfg.RapidAPIKey, cfg.RapidAPIHost), cfg.RapidAPIHost))
	}
	httpLoader := imageresolve.NewHTTPLoader(&http.Client{Transport: cricbuzz.NewTransport()}, blobs, loaderOpts...)
	timed := imageresolve.LoaderFunc(func(ctx context.Context, u string) (imageresolve.Handle, error) {
		start := time.Now()
		h, err := httpLoader.Load(ctx, u)
		out.observe(time.Since(start))
		return h, err
	})
	resolvers := map[string]*imageresolve.Resolver{
		"face": imageresolve.New(timed, imageresolve.PlayerFaceCandidates(cfg.ImageCDNBase), imageresolve.WithObserver(out)),
		"news": imageresolve.New(timed, imageresolve.NewsCoverCandidates(cfg.CricbuzzBaseURL), imageresolve.WithObserver(out)),
	}

	var g errgroup.Group
	g.SetLimit(*concurrency)
	var mu sync.Mutex
	failed := 0
	for _, p := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, *timeout)
			defer cancel()
			r := resolvers[p.kind]
			out.line("%s %s (%d candidates)", p.kind, p.id, len(r.Candidates(p.id)))
			st := r.Resolve(pctx, p.id, *fallback)
			if st.Handle != nil {
				st.Handle.Release()
			}
			if st.Kind != imageresolve.Resolved {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(out.latencies) > 0 {
		median, _ := stats.Median(out.latencies)
		p95, _ := stats.Percentile(out.latencies, 95)
		maxMs, _ := stats.Max(out.latencies)
		fmt.Printf("%d images, %d attempts, %d unresolved; latency ms median=%.0f p95=%.0f max=%.0f\n",
			len(probes), len(out.latencies), failed, median, p95, maxMs)
	}
	if acquired, released := blobs.Stats(); acquired != released {
		log.Fatalf("handle leak: acquired %d released %d", acquired, released)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
