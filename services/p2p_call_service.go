package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// ringTimeout ends calls nobody answered.
const ringTimeout = 45 * time.Second

// P2PCallService is the in-memory one-to-one call registry. The server only
// relays signaling; media never touches it. A user participates in at most
// one live (ringing or accepted) call.
type P2PCallService struct {
	mu     sync.Mutex
	calls  map[string]*models.P2PCall // callID -> call
	byUser map[string]string          // userID -> callID

	friends repository.FriendshipRepository
	users   repository.UserRepository
	hub     ws.EventPublisher
}

func NewP2PCallService(
	friends repository.FriendshipRepository,
	users repository.UserRepository,
	hub ws.EventPublisher,
) *P2PCallService {
	return &P2PCallService{
		calls:   make(map[string]*models.P2PCall),
		byUser:  make(map[string]string),
		friends: friends,
		users:   users,
		hub:     hub,
	}
}

// broadcastPayload joins the call with both sides' public profiles.
func (s *P2PCallService) broadcastPayload(ctx context.Context, call *models.P2PCall) (*models.P2PCallBroadcast, error) {
	users, err := s.users.GetByIDs(ctx, []string{call.CallerID, call.ReceiverID})
	if err != nil {
		return nil, err
	}
	caller, receiver := users[call.CallerID], users[call.ReceiverID]
	if caller == nil || receiver == nil {
		return nil, pkg.ErrNotFound
	}
	return &models.P2PCallBroadcast{
		ID:                  call.ID,
		CallerID:            caller.ID,
		CallerUsername:      caller.Username,
		CallerDisplayName:   caller.DisplayName,
		CallerAvatarURL:     caller.AvatarURL,
		ReceiverID:          receiver.ID,
		ReceiverUsername:    receiver.Username,
		ReceiverDisplayName: receiver.DisplayName,
		ReceiverAvatarURL:   receiver.AvatarURL,
		Type:                call.Type,
		State:               call.State,
		StartedAt:           call.StartedAt,
		AcceptedAt:          call.AcceptedAt,
	}, nil
}

// Initiate starts ringing a friend. A busy receiver produces a directed
// p2p_call_busy to the caller and no registry state.
func (s *P2PCallService) Initiate(ctx context.Context, callerID string, req *models.InitiateCallRequest) error {
	if callerID == req.ReceiverID {
		return fmt.Errorf("%w: cannot call yourself", pkg.ErrInvalidInput)
	}

	friendship, err := s.friends.GetByPair(ctx, callerID, req.ReceiverID)
	if err != nil || friendship.Status != models.FriendshipStatusAccepted {
		return fmt.Errorf("%w: you can only call friends", pkg.ErrForbidden)
	}
	if !s.hub.IsUserOnline(req.ReceiverID) {
		return fmt.Errorf("%w: user is offline", pkg.ErrWrongState)
	}

	s.mu.Lock()
	if _, busy := s.byUser[callerID]; busy {
		s.mu.Unlock()
		return fmt.Errorf("%w: you are already in a call", pkg.ErrBusy)
	}
	if _, busy := s.byUser[req.ReceiverID]; busy {
		s.mu.Unlock()
		s.hub.BroadcastToUser(callerID, ws.Event{
			Op:   ws.OpP2PCallBusy,
			Data: map[string]string{"receiver_id": req.ReceiverID},
		})
		return nil
	}

	call := &models.P2PCall{
		ID:         uuid.NewString(),
		CallerID:   callerID,
		ReceiverID: req.ReceiverID,
		Type:       req.Type,
		State:      models.CallStateRinging,
		StartedAt:  time.Now(),
	}
	s.calls[call.ID] = call
	s.byUser[callerID] = call.ID
	s.byUser[req.ReceiverID] = call.ID
	s.mu.Unlock()

	payload, err := s.broadcastPayload(ctx, call)
	if err != nil {
		s.drop(call.ID)
		return err
	}
	event := ws.Event{Op: ws.OpP2PCallInitiate, Data: payload}
	s.hub.BroadcastToUser(call.CallerID, event)
	s.hub.BroadcastToUser(call.ReceiverID, event)

	time.AfterFunc(ringTimeout, func() { s.expire(call.ID) })
	return nil
}

// expire ends a call still ringing after the timeout and tells both peers.
func (s *P2PCallService) expire(callID string) {
	s.mu.Lock()
	call, ok := s.calls[callID]
	if !ok || call.State != models.CallStateRinging {
		s.mu.Unlock()
		return
	}
	call.State = models.CallStateEnded
	s.removeLocked(call)
	s.mu.Unlock()

	logger.L().Info("call ring timeout", zap.String("call_id", callID))
	event := ws.Event{Op: ws.OpP2PCallDecline, Data: ws.P2PCallRefData{CallID: callID}}
	s.hub.BroadcastToUser(call.CallerID, event)
	s.hub.BroadcastToUser(call.ReceiverID, event)
}

// removeLocked clears the registry entries. Caller holds the lock.
func (s *P2PCallService) removeLocked(call *models.P2PCall) {
	delete(s.calls, call.ID)
	delete(s.byUser, call.CallerID)
	delete(s.byUser, call.ReceiverID)
}

func (s *P2PCallService) drop(callID string) {
	s.mu.Lock()
	if call, ok := s.calls[callID]; ok {
		s.removeLocked(call)
	}
	s.mu.Unlock()
}

// Accept transitions ringing -> accepted. Receiver only.
func (s *P2PCallService) Accept(ctx context.Context, userID, callID string) error {
	s.mu.Lock()
	call, ok := s.calls[callID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: call not found", pkg.ErrNotFound)
	}
	if call.ReceiverID != userID {
		s.mu.Unlock()
		return fmt.Errorf("%w: only the receiver can accept", pkg.ErrForbidden)
	}
	if call.State != models.CallStateRinging {
		s.mu.Unlock()
		return fmt.Errorf("%w: call is not ringing", pkg.ErrWrongState)
	}
	now := time.Now()
	call.State = models.CallStateAccepted
	call.AcceptedAt = &now
	snapshot := *call
	s.mu.Unlock()

	payload, err := s.broadcastPayload(ctx, &snapshot)
	if err != nil {
		return err
	}
	event := ws.Event{Op: ws.OpP2PCallAccept, Data: payload}
	s.hub.BroadcastToUser(snapshot.CallerID, event)
	s.hub.BroadcastToUser(snapshot.ReceiverID, event)
	return nil
}

// Decline ends a ringing call. Either participant may decline (the caller
// declining is a cancel).
func (s *P2PCallService) Decline(ctx context.Context, userID, callID string) error {
	s.mu.Lock()
	call, ok := s.calls[callID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: call not found", pkg.ErrNotFound)
	}
	if !call.Includes(userID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}
	if call.State != models.CallStateRinging {
		s.mu.Unlock()
		return fmt.Errorf("%w: call is not ringing", pkg.ErrWrongState)
	}
	call.State = models.CallStateEnded
	s.removeLocked(call)
	s.mu.Unlock()

	event := ws.Event{Op: ws.OpP2PCallDecline, Data: ws.P2PCallRefData{CallID: callID}}
	s.hub.BroadcastToUser(call.CallerID, event)
	s.hub.BroadcastToUser(call.ReceiverID, event)
	return nil
}

// End hangs up a live call from either side.
func (s *P2PCallService) End(ctx context.Context, userID, callID string) error {
	s.mu.Lock()
	call, ok := s.calls[callID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: call not found", pkg.ErrNotFound)
	}
	if !call.Includes(userID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}
	call.State = models.CallStateEnded
	s.removeLocked(call)
	s.mu.Unlock()

	event := ws.Event{Op: ws.OpP2PCallEnd, Data: ws.P2PCallRefData{CallID: callID}}
	s.hub.BroadcastToUser(call.CallerID, event)
	s.hub.BroadcastToUser(call.ReceiverID, event)
	return nil
}

// Signal relays one SDP offer/answer or ICE candidate to the peer, verbatim.
func (s *P2PCallService) Signal(ctx context.Context, userID string, payload *models.P2PSignalPayload) error {
	s.mu.Lock()
	call, ok := s.calls[payload.CallID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: call not found", pkg.ErrNotFound)
	}
	if !call.Includes(userID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}
	if call.State != models.CallStateRinging && call.State != models.CallStateAccepted {
		s.mu.Unlock()
		return fmt.Errorf("%w: call is not live", pkg.ErrWrongState)
	}
	peer := call.Peer(userID)
	s.mu.Unlock()

	s.hub.BroadcastToUser(peer, ws.Event{Op: ws.OpP2PSignal, Data: payload})
	return nil
}

// HandleDisconnect ends the user's live call when their last connection
// drops; the peer is notified with p2p_call_end.
func (s *P2PCallService) HandleDisconnect(userID string) {
	s.mu.Lock()
	callID, ok := s.byUser[userID]
	if !ok {
		s.mu.Unlock()
		return
	}
	call := s.calls[callID]
	call.State = models.CallStateEnded
	s.removeLocked(call)
	peer := call.Peer(userID)
	s.mu.Unlock()

	s.hub.BroadcastToUser(peer, ws.Event{Op: ws.OpP2PCallEnd, Data: ws.P2PCallRefData{CallID: callID}})
}
