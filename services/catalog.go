package services

import (
	"fmt"
	"os"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/services/repositories"
	"github.com/icupa/giomessaging/shared"
)

// CatalogService mirrors the Graph commerce catalog into the products table
// so order enrichment and category listings never block on the remote API.
type CatalogService struct {
	appContext.DefaultService

	whatsappSvc *WhatsAppService
	productRepo *repositories.ProductRepository

	catalogID       string
	refreshInterval time.Duration
	closed          chan struct{}
}

const CATALOG_SVC = "catalog_svc"

const DEFAULT_CATALOG_ID = "3886617101587200"

func (svc CatalogService) Id() string {
	return CATALOG_SVC
}

func (svc *CatalogService) Configure(ctx *appContext.Context) error {
	svc.catalogID = os.Getenv("CATALOG_ID")
	if svc.catalogID == "" {
		svc.catalogID = DEFAULT_CATALOG_ID
	}
	svc.refreshInterval = 6 * time.Hour
	svc.closed = make(chan struct{})
	return svc.DefaultService.Configure(ctx)
}

func (svc *CatalogService) Start() error {
	svc.whatsappSvc = svc.Service(WHATSAPP_SVC).(*WhatsAppService)
	svc.productRepo = repositories.NewProductRepository(DatabaseFor(svc.Service))

	go svc.refreshLoop()
	return nil
}

func (svc *CatalogService) Shutdown() {
	close(svc.closed)
}

func (svc *CatalogService) CatalogID() string {
	return svc.catalogID
}

func (svc *CatalogService) refreshLoop() {
	if err := svc.Refresh(); err != nil {
		log.Error().Err(err).Msg("Initial catalog refresh failed")
	}

	ticker := time.NewTicker(svc.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := svc.Refresh(); err != nil {
				log.Error().Err(err).Msg("Catalog refresh failed")
			}
		case <-svc.closed:
			return
		}
	}
}

// Refresh pulls every catalog page and upserts the local mirror.
func (svc *CatalogService) Refresh() error {
	products, err := svc.fetchAll()
	if err != nil {
		return err
	}
	if err := svc.productRepo.UpsertAll(products); err != nil {
		return err
	}
	log.Info().Int("products", len(products)).Msg("Catalog mirror refreshed")
	return nil
}

type catalogPage struct {
	Data []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Price       string `json:"price"`
		ImageURL    string `json:"image_url"`
		RetailerID  string `json:"retailer_id"`
		Category    string `json:"category"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

func (svc *CatalogService) fetchAll() ([]model.Product, error) {
	next := fmt.Sprintf("%s/%s/%s/products?fields=id,name,description,price,image_url,retailer_id,category",
		svc.whatsappSvc.BaseURL(), svc.whatsappSvc.Version(), svc.catalogID)

	var products []model.Product
	for next != "" {
		resp, err := svc.whatsappSvc.Get(next)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != 200 {
			resp.Body.Close()
			return nil, fmt.Errorf("catalog API returned status %d", resp.StatusCode)
		}

		var page catalogPage
		err = shared.JSONAPI.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		for _, p := range page.Data {
			products = append(products, model.Product{
				RetailerID: p.RetailerID,
				Name:       p.Name,
				Category:   p.Category,
				ImageURL:   p.ImageURL,
			})
		}
		next = page.Paging.Next
	}
	return products, nil
}

// EnrichItems joins pending items against the mirror; unknown products keep
// placeholder details rather than failing the order.
func (svc *CatalogService) EnrichItems(items []model.PendingItem) []model.OrderItem {
	enriched := make([]model.OrderItem, 0, len(items))
	for _, item := range items {
		name := "Unknown Product"
		image := "defaultImage.jpg"
		if product, err := svc.productRepo.GetByRetailerID(item.ProductRetailerID); err == nil {
			name = product.Name
			image = product.ImageURL
		}
		enriched = append(enriched, model.OrderItem{
			Product:      item.ProductRetailerID,
			ProductName:  name,
			ProductImage: image,
			Quantity:     item.Quantity,
			Price:        item.ItemPrice,
			Currency:     item.Currency,
		})
	}
	return enriched
}

// OrderTotal sums price*quantity across enriched items.
func OrderTotal(items []model.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
