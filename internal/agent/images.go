package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
	"github.com/genesis/genesis/internal/vfs"
)

// Image kinds and sizes
const (
	ImageHero    = "hero"
	ImageService = "service"
	ImageFeature = "feature"

	SizeHero    = "1792x1024"
	SizeContent = "1024x1024"
)

var sectorImageStyle = map[string]string{
	catalog.SectorRestaurant: "ambiance chaleureuse de restaurant, plats colorés, lumière naturelle",
	catalog.SectorRetail:     "boutique lumineuse, produits bien présentés",
	catalog.SectorTech:       "espace de travail moderne, écrans, tons bleus",
	catalog.SectorHealth:     "cadre médical propre et rassurant",
	catalog.SectorEducation:  "salle de classe vivante, apprenants engagés",
	catalog.SectorBeauty:     "salon de beauté élégant, tons doux",
	catalog.SectorNGO:        "communauté solidaire, scène de terrain authentique",
	catalog.SectorArtisan:    "atelier artisanal, mains au travail, matières naturelles",
	catalog.SectorLuxury:     "mise en scène haut de gamme, éclairage studio, tons sombres et dorés",
	catalog.SectorServices:   "équipe professionnelle en situation de travail",
}

// ImagesRequest is the image agent input
type ImagesRequest struct {
	BusinessName string
	Sector       string
	Location     models.Location
	Services     []string
	Features     []string
}

// imageJob is one image to produce
type imageJob struct {
	kind   string
	index  int
	prompt string
	size   string
}

// ImagesAgent generates the hero, service and feature images
type ImagesAgent struct {
	image       provider.Image
	cache       Cache
	downloader  Downloader
	backoff     time.Duration
	limit       int
	maxServices int
	maxFeatures int
}

// NewImagesAgent creates an image agent. cache and downloader may be nil.
func NewImagesAgent(image provider.Image, cache Cache, downloader Downloader, config *Config) *ImagesAgent {
	if config == nil {
		config = DefaultConfig()
	}
	return &ImagesAgent{
		image:       image,
		cache:       cache,
		downloader:  downloader,
		backoff:     config.RetryBackoff,
		limit:       config.ImageConcurrency,
		maxServices: config.MaxServiceImages,
		maxFeatures: config.MaxFeatureImages,
	}
}

func (a *ImagesAgent) jobs(req ImagesRequest) []imageJob {
	style, ok := sectorImageStyle[catalog.NormalizeSector(req.Sector)]
	if !ok {
		style = "photographie professionnelle, lumière naturelle"
	}
	where := catalog.FormatLocation(req.Location)
	if where == "" {
		where = "Afrique de l'Ouest"
	}

	jobs := []imageJob{{
		kind:   ImageHero,
		prompt: fmt.Sprintf("Image d'en-tête pour %s, %s à %s. %s. Format panoramique, sans texte.", req.BusinessName, req.Sector, where, style),
		size:   SizeHero,
	}}
	for i, s := range req.Services {
		if i == a.maxServices {
			break
		}
		jobs = append(jobs, imageJob{
			kind:   ImageService,
			index:  i,
			prompt: fmt.Sprintf("Illustration du service « %s » de %s. %s. Sans texte.", s, req.BusinessName, style),
			size:   SizeContent,
		})
	}
	for i, f := range req.Features {
		if i == a.maxFeatures {
			break
		}
		jobs = append(jobs, imageJob{
			kind:   ImageFeature,
			index:  i,
			prompt: fmt.Sprintf("Illustration de l'atout « %s » pour une entreprise %s. %s. Sans texte.", f, req.Sector, style),
			size:   SizeContent,
		})
	}
	return jobs
}

// Run generates every image in parallel. Failed images fall back to stock URLs.
func (a *ImagesAgent) Run(ctx context.Context, req ImagesRequest) models.AgentResult[models.ImagesData] {
	start := time.Now()
	result := models.AgentResult[models.ImagesData]{
		Agent:    models.AgentImages,
		Provider: a.image.Name(),
		Model:    a.image.Model(),
	}
	defer func() { result.Duration = time.Since(start) }()

	jobs := a.jobs(req)
	images := make([]models.GeneratedImage, len(jobs))

	var (
		mu        sync.Mutex
		generated int
		lastErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			img, err := a.produce(gctx, job)
			if err != nil {
				slog.Warn("ImagesAgent.Run: image failed, using stock", "kind", job.kind, "index", job.index, "error", err)
				img = stockImage(req.Sector, job)
			}
			images[i] = img
			mu.Lock()
			if err != nil {
				lastErr = err
			} else {
				generated++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	var data models.ImagesData
	for i := range images {
		img := images[i]
		switch img.Kind {
		case ImageHero:
			data.Hero = &img
		case ImageService:
			data.Services = append(data.Services, img)
		case ImageFeature:
			data.Features = append(data.Features, img)
		}
	}
	result.Payload = data
	result.Metadata = map[string]any{"generated": generated, "total": len(jobs)}

	if generated == 0 {
		result.FallbackMode = true
		result.Error = errString(lastErr)
	}
	return result
}

// ImageCacheKey is md5(prompt|size)
func ImageCacheKey(prompt, size string) string {
	return md5Hex(prompt, size)
}

// produce returns a cached image or generates and downloads a new one
func (a *ImagesAgent) produce(ctx context.Context, job imageJob) (models.GeneratedImage, error) {
	key := ImageCacheKey(job.prompt, job.size)
	if a.cache != nil {
		var cached models.GeneratedImage
		found, err := a.cache.CacheGet(ctx, vfs.CacheImages, key, &cached)
		if err != nil {
			slog.Warn("ImagesAgent.produce: cache read failed", "error", err)
		}
		if found {
			cached.Kind, cached.Index, cached.Cached = job.kind, job.index, true
			return cached, nil
		}
	}

	res, err := withRetry(ctx, a.backoff, models.AgentImages, func(ctx context.Context) (*provider.ImageResult, error) {
		return a.image.GenerateImage(ctx, provider.ImageRequest{Prompt: job.prompt, Size: job.size, Quality: "standard"})
	})
	if err != nil {
		return models.GeneratedImage{}, err
	}

	img := models.GeneratedImage{
		Kind:       job.kind,
		Index:      job.index,
		URL:        res.ImageURL,
		SourceURL:  res.ImageURL,
		PromptUsed: res.PromptUsed,
		Size:       job.size,
	}
	if a.downloader != nil {
		local, err := a.downloader.Download(ctx, res.ImageURL, key)
		if err != nil {
			return models.GeneratedImage{}, fmt.Errorf("failed to download image: %w", err)
		}
		img.URL = local
	}

	if a.cache != nil {
		if err := a.cache.CachePut(ctx, vfs.CacheImages, key, img); err != nil {
			slog.Warn("ImagesAgent.produce: cache write failed", "error", err)
		}
	}
	return img, nil
}

func stockImage(sector string, job imageJob) models.GeneratedImage {
	return models.GeneratedImage{
		Kind:  job.kind,
		Index: job.index,
		URL:   catalog.StockImage(sector, job.kind, job.index),
		Size:  job.size,
		Stock: true,
	}
}

// ImagesFallback returns stock imagery for every image slot
func ImagesFallback(sector string, services, features int) models.ImagesData {
	hero := stockImage(sector, imageJob{kind: ImageHero, size: SizeHero})
	data := models.ImagesData{Hero: &hero}
	for i := 0; i < services; i++ {
		data.Services = append(data.Services, stockImage(sector, imageJob{kind: ImageService, index: i, size: SizeContent}))
	}
	for i := 0; i < features; i++ {
		data.Features = append(data.Features, stockImage(sector, imageJob{kind: ImageFeature, index: i, size: SizeContent}))
	}
	return data
}
