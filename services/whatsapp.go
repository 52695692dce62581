package services

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/rs/zerolog/log"

	"github.com/icupa/giomessaging/dto"
	"github.com/icupa/giomessaging/shared"
)

// MessageSender is the outbound side of both bots. WhatsAppService is the
// production implementation; tests substitute a recorder.
type MessageSender interface {
	SendMessage(phone string, payload *dto.MessagePayload, phoneNumberID string) error
}

type WhatsAppService struct {
	appContext.DefaultService

	httpClient  *http.Client
	accessToken string
	version     string
	baseURL     string
}

const WHATSAPP_SVC = "whatsapp_svc"

func (svc WhatsAppService) Id() string {
	return WHATSAPP_SVC
}

func (svc *WhatsAppService) Configure(ctx *appContext.Context) error {
	svc.httpClient = &http.Client{
		Timeout: 3 * time.Minute,
	}
	svc.accessToken = os.Getenv("WHATSAPP_ACCESS_TOKEN")
	svc.version = os.Getenv("GRAPH_API_VERSION")
	if svc.version == "" {
		svc.version = "v22.0"
	}
	svc.baseURL = os.Getenv("GRAPH_BASE_URL")
	if svc.baseURL == "" {
		svc.baseURL = "https://graph.facebook.com"
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *WhatsAppService) Start() error {
	if svc.accessToken == "" {
		return fmt.Errorf("WHATSAPP_ACCESS_TOKEN is not set")
	}

	go svc.testConnection()
	return nil
}

// SendMessage posts one message to the Graph messages endpoint on behalf of
// the given business phone number.
func (svc *WhatsAppService) SendMessage(phone string, payload *dto.MessagePayload, phoneNumberID string) error {
	body := *payload
	body.MessagingProduct = "whatsapp"
	body.RecipientType = "individual"
	body.To = shared.FormatPhoneNumber(phone)

	data, err := shared.JSONAPI.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", svc.baseURL, svc.version, phoneNumberID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+svc.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		messagesSentTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("phone_number_id", phoneNumberID).Msg("WhatsApp message sending error")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		messagesSentTotal.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
		log.Error().
			Int("status", resp.StatusCode).
			Str("phone_number_id", phoneNumberID).
			Str("response", string(respBody)).
			Msg("WhatsApp API rejected message")
		return fmt.Errorf("whatsapp API returned status %d", resp.StatusCode)
	}

	messagesSentTotal.WithLabelValues("ok").Inc()
	log.Debug().
		Str("to", body.To).
		Str("type", body.Type).
		Str("phone_number_id", phoneNumberID).
		Msg("Message sent")
	return nil
}

// Get performs an authorized GET against the Graph API; the catalog service
// uses it for product paging.
func (svc *WhatsAppService) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+svc.accessToken)
	return svc.httpClient.Do(req)
}

func (svc *WhatsAppService) BaseURL() string {
	return svc.baseURL
}

func (svc *WhatsAppService) Version() string {
	return svc.version
}

func (svc *WhatsAppService) testConnection() {
	resp, err := svc.Get(fmt.Sprintf("%s/%s/me", svc.baseURL, svc.version))
	if err != nil {
		log.Error().Err(err).Msg("WhatsApp connection test failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("WhatsApp connection test failed")
		return
	}
	log.Info().Msg("WhatsApp connection test successful")
}
