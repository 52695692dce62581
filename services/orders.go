package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/services/repositories"
	"github.com/icupa/giomessaging/shared"
)

// OrderService runs the Nkundino grocery funnel: category browsing, cart
// capture, delivery location, TIN collection, payment instructions and the
// admin confirm/cancel loop.
type OrderService struct {
	appContext.DefaultService

	sender  MessageSender
	store   SessionStore
	catalog *CatalogService

	orderRepo   *repositories.OrderRepository
	productRepo *repositories.ProductRepository

	adminPhoneNumberID string
	chunkDelay         time.Duration
}

const ORDER_SVC = "order_svc"

// CatalogChunkSize is the platform limit on products per product_list message.
const CatalogChunkSize = 30

const mobileMoneyVendor = "320297"

func (svc OrderService) Id() string {
	return ORDER_SVC
}

func (svc *OrderService) Configure(ctx *appContext.Context) error {
	svc.adminPhoneNumberID = os.Getenv("ADMIN_PHONE_NUMBER_ID")
	if svc.adminPhoneNumberID == "" {
		svc.adminPhoneNumberID = "611707258686108"
	}
	svc.chunkDelay = 500 * time.Millisecond
	return svc.DefaultService.Configure(ctx)
}

func (svc *OrderService) Start() error {
	svc.sender = svc.Service(WHATSAPP_SVC).(*WhatsAppService)
	svc.store = svc.Service(SESSION_SVC).(*SessionService).Store()
	svc.catalog = svc.Service(CATALOG_SVC).(*CatalogService)

	db := DatabaseFor(svc.Service)
	svc.orderRepo = repositories.NewOrderRepository(db)
	svc.productRepo = repositories.NewProductRepository(db)
	return nil
}

// HandleTextMessage covers the shop keywords and the TIN collection stage.
func (svc *OrderService) HandleTextMessage(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error {
	body := strings.TrimSpace(msg.Text.Body)
	lower := strings.ToLower(body)

	switch lower {
	case "adminclear":
		log.Info().Msg("All user contexts reset")
		return svc.store.ClearContexts(ctx)
	case "clear":
		log.Info().Str("phone", phone).Msg("User context reset")
		return svc.store.DeleteContext(ctx, phone)
	}

	for _, keyword := range shared.NkundinoKeywords {
		if lower == keyword {
			return svc.SendCategoryList(phone, phoneNumberID)
		}
	}

	uc, err := svc.store.GetContext(ctx, phone)
	if err != nil {
		return err
	}
	if uc != nil && uc.Stage == shared.StageExpectingTin {
		return svc.handleTinInput(ctx, body, uc, phoneNumberID)
	}

	log.Debug().Str("phone", phone).Str("text", lower).Msg("Unrecognized shop message")
	return nil
}

func (svc *OrderService) handleTinInput(ctx context.Context, tin string, uc *model.UserContext, phoneNumberID string) error {
	if tin == "" {
		return svc.sender.SendMessage(uc.Phone,
			dto.TextMessage("Invalid TIN. Please provide a valid TIN."), phoneNumberID)
	}

	uc.TIN = tin
	uc.Stage = shared.StageExpectingMobilePay
	if err := svc.store.SaveContext(ctx, uc); err != nil {
		return err
	}

	if uc.OrderRef != "" {
		if err := svc.orderRepo.SetTIN(uc.OrderRef, tin); err != nil {
			log.Error().Err(err).Str("order_id", uc.OrderRef).Msg("Failed to store TIN")
		}
		if err := svc.SendOrderConfirmation(uc.OrderRef); err != nil {
			log.Error().Err(err).Str("order_id", uc.OrderRef).Msg("Failed to notify admin")
		}
	}

	return svc.sendPaymentPrompt(uc.Phone, phoneNumberID)
}

// HandleInteractiveMessage covers category selection, the cart prompt buttons,
// admin confirm/cancel replies and the payment method buttons.
func (svc *OrderService) HandleInteractiveMessage(ctx context.Context, msg *dto.InboundMessage, phone, phoneNumberID string) error {
	if msg.Interactive.ListReply != nil {
		return svc.SendCatalogForCategory(phone, phoneNumberID, msg.Interactive.ListReply.ID)
	}
	if msg.Interactive.ButtonReply == nil {
		return nil
	}
	buttonID := msg.Interactive.ButtonReply.ID

	switch {
	case strings.HasPrefix(buttonID, "confirm_"), strings.HasPrefix(buttonID, "cancel_"):
		return svc.handleAdminDecision(buttonID, phoneNumberID)
	case buttonID == "CHECKOUT":
		return svc.sender.SendMessage(phone,
			dto.LocationRequestMessage("Share your delivery location"), phoneNumberID)
	case buttonID == "MORE":
		return svc.SendCategoryList(phone, phoneNumberID)
	}

	uc, err := svc.store.GetContext(ctx, phone)
	if err != nil {
		return err
	}
	if uc != nil && uc.Stage == shared.StageExpectingMobilePay {
		return svc.handleMobileMoneySelection(buttonID, uc, phoneNumberID)
	}
	return nil
}

func (svc *OrderService) handleAdminDecision(buttonID, phoneNumberID string) error {
	parts := strings.SplitN(buttonID, "_", 2)
	if len(parts) != 2 {
		return nil
	}
	orderID := parts[1]

	order, err := svc.orderRepo.GetByOrderID(orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Order not found for admin decision")
		return nil
	}

	if strings.HasPrefix(buttonID, "confirm_") {
		if err := svc.orderRepo.MarkPaid(orderID); err != nil {
			return err
		}
		return svc.sender.SendMessage(order.Phone, dto.TextMessage(
			"*Thank you*\nWe received your payment successfully! Your order is being processed and will be delivered soon"),
			phoneNumberID)
	}

	if err := svc.orderRepo.MarkRejected(orderID); err != nil {
		return err
	}
	return svc.sender.SendMessage(order.Phone, dto.TextMessage(
		"*Oops*\nOrder cancelled. Please contact us on +250788640995"), phoneNumberID)
}

// HandleOrder captures the cart from an inbound order message and prompts for
// more items or checkout.
func (svc *OrderService) HandleOrder(ctx context.Context, msg *dto.InboundMessage, displayPhoneNumber, phoneNumberID string) error {
	items := make([]model.PendingItem, 0, len(msg.Order.ProductItems))
	total := decimal.Zero
	for _, item := range msg.Order.ProductItems {
		price := decimal.NewFromFloat(item.ItemPrice)
		items = append(items, model.PendingItem{
			ProductRetailerID: item.ProductRetailerID,
			Quantity:          item.Quantity,
			ItemPrice:         price,
			Currency:          item.Currency,
		})
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	uc, err := svc.store.GetContext(ctx, msg.From)
	if err != nil {
		return err
	}
	if uc == nil {
		uc = model.NewUserContext(msg.From)
	}
	uc.Order = &model.PendingOrder{
		MessageID:   msg.ID,
		Phone:       msg.From,
		Receiver:    displayPhoneNumber,
		Items:       items,
		TotalAmount: total,
	}
	uc.Stage = shared.StageSendTinMessage
	if err := svc.store.SaveContext(ctx, uc); err != nil {
		return err
	}

	return svc.sender.SendMessage(msg.From, dto.ButtonMessage(
		"*Your order's looking good!*\nWant to add anything else before checkout?",
		dto.ButtonReply{ID: "MORE", Title: "More"},
		dto.ButtonReply{ID: "CHECKOUT", Title: "Checkout"},
	), phoneNumberID)
}

// HandleLocation finalizes the pending cart into a persisted order once the
// delivery location arrives.
func (svc *OrderService) HandleLocation(ctx context.Context, location *dto.InboundLocation, phone, phoneNumberID string) error {
	uc, err := svc.store.GetContext(ctx, phone)
	if err != nil {
		return err
	}
	if uc == nil || uc.Order == nil {
		return svc.sender.SendMessage(phone,
			dto.TextMessage("No active order found. Please place an order first."), phoneNumberID)
	}

	enriched := svc.catalog.EnrichItems(uc.Order.Items)
	currency := ""
	if len(enriched) > 0 {
		currency = enriched[0].Currency
	}
	vendor, currencyCode, countryCode := VendorForCurrency(currency)

	order := &model.Order{
		ID:                uuid.New().String(),
		OrderID:           GenerateOrderNumber(),
		Phone:             uc.Order.Phone,
		User:              "+" + uc.Order.Phone,
		Currency:          currencyCode,
		CountryCode:       countryCode,
		Amount:            OrderTotal(enriched),
		Products:          model.MarshalItems(enriched),
		Vendor:            vendor,
		DeliveryLatitude:  &location.Latitude,
		DeliveryLongitude: &location.Longitude,
		Date:              time.Now(),
	}
	if err := svc.orderRepo.Create(order); err != nil {
		log.Error().Err(err).Str("order_id", order.OrderID).Msg("Failed to save order")
		return svc.sender.SendMessage(phone,
			dto.TextMessage("Sorry, there was an error processing your location. Please try again."), phoneNumberID)
	}
	log.Info().Str("order_id", order.OrderID).Str("phone", phone).Msg("Order saved")

	if err := svc.SendOrderConfirmation(order.OrderID); err != nil {
		log.Error().Err(err).Str("order_id", order.OrderID).Msg("Failed to notify admin")
	}

	uc.Stage = shared.StageExpectingMobilePay
	uc.OrderRef = order.OrderID
	uc.VendorNumber = vendor
	uc.Currency = currencyCode
	if err := svc.store.SaveContext(ctx, uc); err != nil {
		return err
	}

	return svc.sendPaymentPrompt(phone, phoneNumberID)
}

func (svc *OrderService) sendPaymentPrompt(phone, phoneNumberID string) error {
	return svc.sender.SendMessage(phone, dto.ButtonMessage(
		"Proceed to payment",
		dto.ButtonReply{ID: "mtn_momo", Title: "MTN MoMo"},
	), phoneNumberID)
}

func (svc *OrderService) handleMobileMoneySelection(buttonID string, uc *model.UserContext, phoneNumberID string) error {
	currency := uc.Currency
	if currency == "" {
		currency = "RWF"
	}

	var body string
	switch currency {
	case "RWF":
		switch buttonID {
		case "mtn_momo":
			body = fmt.Sprintf("*Pay*\nPlease pay with\nMTN MoMo to %s, name Nkundino Mini Supermarket", mobileMoneyVendor)
		case "airtel_mobile_money":
			body = fmt.Sprintf("*Pay*\nPlease pay with\nAirtel Money to %s, name Nkundino Mini Supermarket", mobileMoneyVendor)
		default:
			log.Debug().Str("button", buttonID).Msg("Unrecognized mobile money option")
			return nil
		}
	case "XOF":
		switch buttonID {
		case "mtn_momo":
			body = fmt.Sprintf("Veuillez payer avec\nMTN Mobile Money au %s, nom Nkundino Mini Supermarket\n____________________\nVotre commande est en cours de traitement et sera livrée sous peu.", mobileMoneyVendor)
		case "airtel_mobile_money":
			body = fmt.Sprintf("Veuillez payer avec\nAirtel Money au %s, nom Nkundino Mini Supermarket\n____________________\nVotre commande est en cours de traitement et sera livrée sous peu.", mobileMoneyVendor)
		default:
			log.Debug().Str("button", buttonID).Msg("Unrecognized mobile money option")
			return nil
		}
	default:
		log.Warn().Str("currency", currency).Msg("Unsupported currency")
		return nil
	}

	return svc.sender.SendMessage(uc.Phone, dto.TextMessage(body), phoneNumberID)
}

// SaveOrder persists an order submitted over the REST API.
func (svc *OrderService) SaveOrder(req *dto.SaveOrderRequest) (*model.Order, error) {
	items := make([]model.PendingItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, model.PendingItem{
			ProductRetailerID: item.ProductRetailerID,
			Quantity:          item.Quantity,
			ItemPrice:         decimal.NewFromFloat(item.ItemPrice),
			Currency:          item.Currency,
		})
	}

	enriched := svc.catalog.EnrichItems(items)
	currency := ""
	if len(enriched) > 0 {
		currency = enriched[0].Currency
	}
	vendor, currencyCode, countryCode := VendorForCurrency(currency)

	order := &model.Order{
		ID:          uuid.New().String(),
		OrderID:     GenerateOrderNumber(),
		Phone:       req.CustomerInfo.Phone,
		User:        "+" + req.CustomerInfo.Phone,
		Currency:    currencyCode,
		CountryCode: countryCode,
		Amount:      OrderTotal(enriched),
		Products:    model.MarshalItems(enriched),
		Vendor:      vendor,
		TIN:         req.TIN,
		Date:        time.Now(),
	}
	if req.Location != nil {
		order.DeliveryLatitude = &req.Location.Latitude
		order.DeliveryLongitude = &req.Location.Longitude
	}

	if err := svc.orderRepo.Create(order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns recent orders for the admin dashboard.
func (svc *OrderService) ListOrders(limit int) ([]model.Order, error) {
	return svc.orderRepo.List(limit)
}

// SendOrderConfirmation sends the confirm/cancel prompt for an order to the
// active admin number.
func (svc *OrderService) SendOrderConfirmation(orderID string) error {
	order, err := svc.orderRepo.GetByOrderID(orderID)
	if err != nil {
		return err
	}
	admin, err := svc.orderRepo.ActiveAdminPhone()
	if err != nil {
		return fmt.Errorf("no active admin phone number found: %w", err)
	}

	var items []model.OrderItem
	if err := shared.JSONAPI.Unmarshal(order.Products, &items); err != nil {
		return err
	}

	var lines []string
	for _, item := range items {
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		lines = append(lines, fmt.Sprintf("%s x%d - %s %s",
			item.ProductName, item.Quantity, lineTotal.String(), item.Currency))
	}

	body := fmt.Sprintf(
		"New Order Received!\n\nOrder ID: %s\nCustomer Phone: %s\nTotal Amount: %s %s\n\nItems:\n%s\n\nPlease confirm or cancel this order.",
		order.OrderID, order.Phone, order.Amount.String(), order.Currency, strings.Join(lines, "\n"))

	return svc.sender.SendMessage(admin.Number, dto.ButtonMessage(
		body,
		dto.ButtonReply{ID: "confirm_" + order.OrderID, Title: "Confirm"},
		dto.ButtonReply{ID: "cancel_" + order.OrderID, Title: "Cancel"},
	), svc.adminPhoneNumberID)
}

// SendCategoryList shows the shop's category picker.
func (svc *OrderService) SendCategoryList(phone, phoneNumberID string) error {
	rows := make([]dto.SectionRow, 0, len(shared.NkundinoCategories))
	for _, category := range shared.NkundinoCategories {
		rows = append(rows, dto.SectionRow{
			ID:    category,
			Title: FormatCategoryTitle(category),
		})
	}

	return svc.sender.SendMessage(phone, dto.ListMessage(
		"Welcome to Nkundino Mini Supermarket App!",
		"Please choose a category to view products:",
		"Get your groceries delivered",
		"Select Category",
		dto.ActionSection{Title: "Categories", Rows: rows},
	), phoneNumberID)
}

// SendCatalogForCategory sends a category's products in product_list chunks,
// paced to stay under the messaging rate limit.
func (svc *OrderService) SendCatalogForCategory(phone, phoneNumberID, category string) error {
	ids, err := svc.productRepo.RetailerIDsByCategory(category)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		log.Warn().Str("category", category).Msg("No products found for category")
		return svc.sender.SendMessage(phone,
			dto.TextMessage("No products available in this category right now."), phoneNumberID)
	}

	chunks := ChunkStrings(ids, CatalogChunkSize)
	for i, chunk := range chunks {
		if err := svc.sender.SendMessage(phone, dto.ProductListMessage(
			FormatCategoryTitle(category),
			"Our products:",
			svc.catalog.CatalogID(),
			FormatCategoryTitle(category),
			chunk,
		), phoneNumberID); err != nil {
			return err
		}
		if i < len(chunks)-1 {
			time.Sleep(svc.chunkDelay)
		}
	}
	return nil
}

// FormatCategoryTitle turns a category slug into a display title, truncated
// to the platform's 24 character row-title limit.
func FormatCategoryTitle(category string) string {
	words := strings.Split(category, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	title := strings.Join(words, " ")
	if len(title) > 24 {
		title = title[:21] + "..."
	}
	return title
}

// GenerateOrderNumber yields ORD-<yyyymmdd>-<6 chars> order references.
func GenerateOrderNumber() string {
	entropy := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), entropy[:6])
}

// VendorForCurrency maps the cart currency onto the vendor line and country.
func VendorForCurrency(currency string) (vendor, currencyCode, countryCode string) {
	if currency == "XOF" {
		return "+22892450808", "XOF", "TG"
	}
	return "+250788767816", "RWF", "RW"
}

// ChunkStrings splits ids into slices of at most size elements.
func ChunkStrings(items []string, size int) [][]string {
	if size <= 0 {
		return [][]string{items}
	}
	var chunks [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
