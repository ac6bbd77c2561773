// Package sfu wraps the external Selective Forwarding Unit: access-token
// minting for clients joining a voice room, and the admin API used to evict
// participants and tear down rooms. Admin calls go through a circuit breaker
// so a dead SFU degrades voice moderation instead of stalling the hub.
package sfu

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/pkg/metrics"
)

// Credentials locate one SFU instance. URL is the ws(s) endpoint handed to
// clients; admin calls derive the http(s) form from it.
type Credentials struct {
	URL       string
	APIKey    string
	APISecret string
}

// TokenOptions shape the grant embedded in a minted access token.
type TokenOptions struct {
	Identity       string
	Name           string
	CanPublish     bool
	CanSubscribe   bool
	CanPublishData bool
}

// tokenValidity is deliberately long: the SFU handles its own disconnects,
// the token only gates room entry.
const tokenValidity = 24 * time.Hour

// MintToken signs a room-join token for one user. Room name is the channel id.
func MintToken(creds Credentials, room string, opts TokenOptions) (string, error) {
	at := auth.NewAccessToken(creds.APIKey, creds.APISecret)

	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           room,
		CanPublish:     &opts.CanPublish,
		CanSubscribe:   &opts.CanSubscribe,
		CanPublishData: &opts.CanPublishData,
	}

	at.AddGrant(grant).
		SetIdentity(opts.Identity).
		SetName(opts.Name).
		SetValidFor(tokenValidity)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("failed to mint sfu token: %w", err)
	}
	return token, nil
}

// Admin talks to SFU instances' management APIs. One breaker guards all
// instances; admin traffic is low-volume and the instances share fate with
// the platform operator's network anyway.
type Admin struct {
	breaker    *gobreaker.CircuitBreaker
	httpClient *http.Client
}

// NewAdmin builds the admin client with its circuit breaker.
func NewAdmin() *Admin {
	settings := gobreaker.Settings{
		Name:        "sfu-admin",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var v float64
			switch to {
			case gobreaker.StateOpen:
				v = 1
			case gobreaker.StateHalfOpen:
				v = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
			logger.L().Warn("sfu admin breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &Admin{
		breaker:    gobreaker.NewCircuitBreaker(settings),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evict removes one participant from a room. Best-effort: callers treat a
// failure as "the SFU will notice on its own" and proceed.
func (a *Admin) Evict(ctx context.Context, creds Credentials, room, identity string) error {
	_, err := a.breaker.Execute(func() (any, error) {
		client := lksdk.NewRoomServiceClient(httpURL(creds.URL), creds.APIKey, creds.APISecret)
		_, rpcErr := client.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
			Room:     room,
			Identity: identity,
		})
		return nil, rpcErr
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logger.L().Warn("sfu admin breaker open, skipping evict",
				zap.String("room", room), zap.String("identity", identity))
			return nil
		}
		return fmt.Errorf("sfu evict: %w", err)
	}
	return nil
}

// DeleteRoom tears down a room after its channel is deleted.
func (a *Admin) DeleteRoom(ctx context.Context, creds Credentials, room string) error {
	_, err := a.breaker.Execute(func() (any, error) {
		client := lksdk.NewRoomServiceClient(httpURL(creds.URL), creds.APIKey, creds.APISecret)
		_, rpcErr := client.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: room})
		return nil, rpcErr
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logger.L().Warn("sfu admin breaker open, skipping room delete",
				zap.String("room", room))
			return nil
		}
		return fmt.Errorf("sfu delete room: %w", err)
	}
	return nil
}

// ScrapeMetrics fetches an instance's Prometheus text exposition.
func (a *Admin) ScrapeMetrics(ctx context.Context, baseURL string) (string, error) {
	body, err := a.breaker.Execute(func() (any, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, httpURL(baseURL)+"/metrics", nil)
		if reqErr != nil {
			return nil, reqErr
		}

		resp, doErr := a.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("metrics endpoint returned %d", resp.StatusCode)
		}

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if readErr != nil {
			return nil, readErr
		}
		return string(data), nil
	})
	if err != nil {
		return "", fmt.Errorf("sfu metrics scrape: %w", err)
	}
	return body.(string), nil
}

// httpURL converts a client-facing ws(s) endpoint to its http(s) admin form.
func httpURL(u string) string {
	u = strings.TrimRight(u, "/")
	switch {
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	default:
		return u
	}
}
