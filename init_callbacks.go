package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/services"
	"github.com/chorushq/chorus/ws"
)

// memberResolver adapts the member store to the hub's fan-out interface.
type memberResolver struct {
	members repository.MemberRepository
}

func (r *memberResolver) ServerMemberIDs(serverID string) ([]string, error) {
	return r.members.ListUserIDs(context.Background(), serverID)
}

// readyProvider assembles the per-user parts of the ready payload.
type readyProvider struct {
	servers repository.ServerRepository
	mutes   repository.ServerMuteRepository
}

func (p *readyProvider) ServersFor(userID string) ([]ws.ReadyServerItem, error) {
	servers, err := p.servers.ListByUser(context.Background(), userID)
	if err != nil {
		return nil, err
	}
	items := make([]ws.ReadyServerItem, 0, len(servers))
	for _, s := range servers {
		items = append(items, ws.ReadyServerItem{ID: s.ID, Name: s.Name, IconURL: s.IconURL})
	}
	return items, nil
}

func (p *readyProvider) MutedServerIDsFor(userID string) ([]string, error) {
	return p.mutes.MutedServerIDs(context.Background(), userID)
}

// initCallbacks wires the hub's resolvers, lifecycle callbacks and the
// inbound intent table. The hub stays free of domain imports; everything it
// needs arrives through these closures.
func initCallbacks(hub *ws.Hub, repos *Repositories, svcs *Services) {
	hub.SetMemberResolver(&memberResolver{members: repos.Member})
	hub.SetChannelViewerResolver(svcs.ChannelPermission)

	hub.SetOnUserFirstConnect(func(userID string) {
		svcs.Presence.OnFirstConnect(userID)
	})
	hub.SetOnUserFullyDisconnected(func(userID string) {
		svcs.Presence.OnLastDisconnect(userID)
		svcs.Voice.OnUserOffline(userID)
		svcs.P2PCall.HandleDisconnect(userID)
	})
	hub.SetOnClientSync(func(c *ws.Client) {
		states := svcs.Voice.SyncFor(context.Background(), c.UserID())
		c.SendEvent(ws.Event{Op: ws.OpVoiceStatesSync, Data: states})
	})

	registerIntents(hub, repos, svcs)
}

// decodeIntent unmarshals one intent payload, mapping junk frames to
// ErrInvalidInput so the client gets a typed error event.
func decodeIntent(data json.RawMessage, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: malformed intent payload", pkg.ErrInvalidInput)
	}
	return nil
}

func registerIntents(hub *ws.Hub, repos *Repositories, svcs *Services) {
	hub.RegisterIntent(ws.OpTyping, func(c *ws.Client, data json.RawMessage) {
		var payload ws.TypingData
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		ctx := context.Background()
		if err := svcs.ChannelPermission.RequireChannel(ctx, payload.ChannelID, c.UserID(), models.PermSendMessages); err != nil {
			c.SendError(err)
			return
		}
		hub.BroadcastToChannelViewers(payload.ChannelID, ws.Event{
			Op: ws.OpTypingStart,
			Data: ws.TypingStartData{
				UserID:    c.UserID(),
				Username:  c.Username(),
				ChannelID: payload.ChannelID,
			},
		})
	})

	hub.RegisterIntent(ws.OpDMTyping, func(c *ws.Client, data json.RawMessage) {
		var payload ws.DMTypingData
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		channel, err := repos.DM.GetChannel(context.Background(), payload.DMChannelID)
		if err != nil {
			c.SendError(err)
			return
		}
		if !channel.Includes(c.UserID()) {
			c.SendError(fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden))
			return
		}
		hub.BroadcastToUser(channel.OtherParticipant(c.UserID()), ws.Event{
			Op: ws.OpDMTypingStart,
			Data: ws.DMTypingStartData{
				UserID:      c.UserID(),
				Username:    c.Username(),
				DMChannelID: payload.DMChannelID,
			},
		})
	})

	hub.RegisterIntent(ws.OpPresenceUpdate, func(c *ws.Client, data json.RawMessage) {
		var payload models.UpdateStatusRequest
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		if err := pkg.Validate(&payload); err != nil {
			c.SendError(err)
			return
		}
		if err := svcs.Presence.SetStatus(context.Background(), c.UserID(), payload.Status); err != nil {
			c.SendError(err)
		}
	})

	registerVoiceIntents(hub, svcs.Voice)
	registerP2PIntents(hub, svcs.P2PCall)
}

func registerVoiceIntents(hub *ws.Hub, voice *services.VoiceService) {
	hub.RegisterIntent(ws.OpVoiceJoin, func(c *ws.Client, data json.RawMessage) {
		var payload ws.VoiceJoinData
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		// The join broadcasts the state change itself; the SFU token travels
		// over the HTTP endpoint.
		if _, err := voice.Join(context.Background(), c.UserID(), payload.ChannelID); err != nil {
			c.SendError(err)
		}
	})

	hub.RegisterIntent(ws.OpVoiceLeave, func(c *ws.Client, data json.RawMessage) {
		voice.Leave(context.Background(), c.UserID())
	})

	hub.RegisterIntent(ws.OpVoiceStateUpdateReq, func(c *ws.Client, data json.RawMessage) {
		var payload ws.VoiceStateUpdateRequestData
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		err := voice.UpdateState(context.Background(), c.UserID(), &models.VoiceStateUpdateRequest{
			IsMuted:     payload.IsMuted,
			IsDeafened:  payload.IsDeafened,
			IsStreaming: payload.IsStreaming,
		})
		if err != nil {
			c.SendError(err)
		}
	})

	hub.RegisterIntent(ws.OpVoiceAdminStateUpdate, func(c *ws.Client, data json.RawMessage) {
		var payload ws.VoiceAdminStateUpdateData
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		err := voice.AdminUpdateState(context.Background(), c.UserID(), &models.VoiceAdminStateRequest{
			TargetUserID:     payload.TargetUserID,
			IsServerMuted:    payload.IsServerMuted,
			IsServerDeafened: payload.IsServerDeafened,
		})
		if err != nil {
			c.SendError(err)
		}
	})

	hub.RegisterIntent(ws.OpVoiceMoveUser, func(c *ws.Client, data json.RawMessage) {
		var payload ws.VoiceMoveUserData
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		err := voice.MoveUser(context.Background(), c.UserID(), &models.VoiceMoveRequest{
			TargetUserID: payload.TargetUserID,
			ChannelID:    payload.TargetChannelID,
		})
		if err != nil {
			c.SendError(err)
		}
	})

	hub.RegisterIntent(ws.OpVoiceDisconnectUser, func(c *ws.Client, data json.RawMessage) {
		var payload ws.VoiceDisconnectUserData
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		err := voice.DisconnectUser(context.Background(), c.UserID(), &models.VoiceDisconnectRequest{
			TargetUserID: payload.TargetUserID,
		})
		if err != nil {
			c.SendError(err)
		}
	})
}

func registerP2PIntents(hub *ws.Hub, calls *services.P2PCallService) {
	hub.RegisterIntent(ws.OpP2PCallInitiate, func(c *ws.Client, data json.RawMessage) {
		var payload models.InitiateCallRequest
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		if err := pkg.Validate(&payload); err != nil {
			c.SendError(err)
			return
		}
		if err := calls.Initiate(context.Background(), c.UserID(), &payload); err != nil {
			c.SendError(err)
		}
	})

	callAction := func(fn func(ctx context.Context, userID, callID string) error) ws.IntentHandler {
		return func(c *ws.Client, data json.RawMessage) {
			var payload models.CallActionRequest
			if err := decodeIntent(data, &payload); err != nil {
				c.SendError(err)
				return
			}
			if err := pkg.Validate(&payload); err != nil {
				c.SendError(err)
				return
			}
			if err := fn(context.Background(), c.UserID(), payload.CallID); err != nil {
				c.SendError(err)
			}
		}
	}
	hub.RegisterIntent(ws.OpP2PCallAccept, callAction(calls.Accept))
	hub.RegisterIntent(ws.OpP2PCallDecline, callAction(calls.Decline))
	hub.RegisterIntent(ws.OpP2PCallEnd, callAction(calls.End))

	hub.RegisterIntent(ws.OpP2PSignal, func(c *ws.Client, data json.RawMessage) {
		var payload models.P2PSignalPayload
		if err := decodeIntent(data, &payload); err != nil {
			c.SendError(err)
			return
		}
		if err := pkg.Validate(&payload); err != nil {
			c.SendError(err)
			return
		}
		if err := calls.Signal(context.Background(), c.UserID(), &payload); err != nil {
			c.SendError(err)
		}
	})
}
