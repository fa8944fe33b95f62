package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hackgods/clinic-chat-scheduling/internal/api"
)

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeError
)

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        200,
			MaxIdleConnsPerHost: 200,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// chatClient talks to the api-server the way a messaging front end would.
type chatClient struct {
	baseURL string
	http    *http.Client
}

func (c *chatClient) say(ctx context.Context, cpf, message string) (string, error) {
	body, err := json.Marshal(api.ChatRequest{CPF: cpf, Message: message})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var out api.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("chat: decode reply: %w", err)
	}
	return out.Reply, nil
}

func (c *chatClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *chatClient) patientAppointments(ctx context.Context, cpf string) ([]api.AppointmentResponse, error) {
	var out []api.AppointmentResponse
	err := c.get(ctx, "/patients/"+url.PathEscape(cpf)+"/appointments", &out)
	return out, err
}

func (c *chatClient) availability(ctx context.Context, specialty, date string) (api.AvailabilityResponse, error) {
	q := url.Values{}
	q.Set("specialty", specialty)
	q.Set("date", date)

	var out api.AvailabilityResponse
	err := c.get(ctx, "/availability?"+q.Encode(), &out)
	return out, err
}

func (c *chatClient) allAppointments(ctx context.Context) ([]api.AppointmentResponse, error) {
	var out []api.AppointmentResponse
	err := c.get(ctx, "/appointments", &out)
	return out, err
}

// offeredTimes extracts the HH:MM entries of a slot listing reply.
func offeredTimes(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		if t, ok := strings.CutPrefix(strings.TrimSpace(line), "🕒 "); ok {
			out = append(out, t)
		}
	}
	return out
}

// classify maps the reply to a chosen time onto a report bucket.
func classify(reply string) outcome {
	switch {
	case strings.Contains(reply, "Consulta agendada"):
		return outcomeSuccess
	case strings.Contains(reply, "Nenhum doutor"),
		strings.Contains(reply, "Todos os doutores"),
		strings.Contains(reply, "sendo reservado"),
		strings.Contains(reply, "Horário não disponível"):
		return outcomeConflict
	default:
		return outcomeError
	}
}

type slotKey struct {
	doctorID int64
	date     string
	time     string
}

// doubleBookings returns every (doctor, date, time) held by more than one
// appointment.
func doubleBookings(appts []api.AppointmentResponse) []slotKey {
	seen := make(map[slotKey]int, len(appts))
	var dup []slotKey
	for _, a := range appts {
		k := slotKey{doctorID: a.DoctorID, date: a.Date, time: a.Time}
		seen[k]++
		if seen[k] == 2 {
			dup = append(dup, k)
		}
	}
	return dup
}
