package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/config"
	"github.com/jyoon-dev/ssak3/internal/identity"
	"github.com/jyoon-dev/ssak3/internal/market"
	"github.com/jyoon-dev/ssak3/internal/outbox"
	"github.com/jyoon-dev/ssak3/internal/session"
	"github.com/jyoon-dev/ssak3/internal/status"
	"github.com/jyoon-dev/ssak3/internal/sync"
	"github.com/jyoon-dev/ssak3/internal/unread"
)

// bootstrapWait bounds how long a history request blocks on the room
// gate before giving up. The gate itself never blocks forever (not-found
// falls open to a placeholder), so this only trips on a hung transport.
const bootstrapWait = 10 * time.Second

// Handler serves the local control API over the session's unix socket.
type Handler struct {
	sessionName string
	cfg         *config.Config
	machine     *status.Machine
	creds       *session.CredStore
	resolver    *identity.Resolver
	client      *market.Client
	poller      *sync.RoomPoller
	feeds       *sync.FeedManager
	sender      *outbox.Sender
	unread      *unread.State
	bus         *bus.Bus
	mediaDir    string
	log         *zap.Logger
}

func NewHandler(
	sessionName string,
	cfg *config.Config,
	machine *status.Machine,
	creds *session.CredStore,
	resolver *identity.Resolver,
	client *market.Client,
	poller *sync.RoomPoller,
	feeds *sync.FeedManager,
	sender *outbox.Sender,
	u *unread.State,
	b *bus.Bus,
	mediaDir string,
	log *zap.Logger,
) *Handler {
	return &Handler{
		sessionName: sessionName,
		cfg:         cfg,
		machine:     machine,
		creds:       creds,
		resolver:    resolver,
		client:      client,
		poller:      poller,
		feeds:       feeds,
		sender:      sender,
		unread:      u,
		bus:         b,
		mediaDir:    mediaDir,
		log:         log.Named("api"),
	}
}

// Register mounts all control routes.
func (h *Handler) Register(e *echo.Echo) {
	v1 := e.Group("/v1")
	v1.GET("/status", h.Status)
	v1.GET("/auth/url", h.AuthURL)
	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/logout", h.Logout)
	v1.GET("/rooms", h.Rooms)
	v1.POST("/rooms", h.CreateRoom)
	v1.DELETE("/rooms/:id", h.LeaveRoom)
	v1.GET("/rooms/:id/messages", h.Messages)
	v1.POST("/rooms/:id/messages", h.SendText)
	v1.POST("/rooms/:id/media", h.SendMedia)
	v1.POST("/rooms/:id/read", h.MarkRead)
	v1.POST("/rooms/:id/close", h.CloseRoom)
	v1.POST("/focus", h.Focus)
}

func (h *Handler) Status(c echo.Context) error {
	resp := StatusResponse{
		State:       string(h.machine.Current()),
		Session:     h.sessionName,
		UnreadTotal: h.unread.Total(),
		RoomCount:   len(h.poller.Rooms()),
	}
	if me, err := h.resolver.Resolve(); err == nil && me != nil {
		resp.LoggedIn = true
		resp.LocalID = me.LocalID
		resp.ForeignID = me.ForeignID
		resp.Nickname = me.Nickname
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) AuthURL(c echo.Context) error {
	q := url.Values{}
	q.Set("client_id", h.cfg.KakaoClientID)
	q.Set("redirect_uri", h.cfg.KakaoRedirectURI)
	q.Set("response_type", "code")
	return c.JSON(http.StatusOK, AuthURLResponse{
		URL: "https://kauth.kakao.com/oauth/authorize?" + q.Encode(),
	})
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "authorization code required")
	}

	if h.machine.Current() == status.AuthRequired {
		_ = h.machine.Transition(status.Authenticating)
	}

	res, err := h.client.ExchangeKakaoCode(c.Request().Context(), req.Code, h.cfg.KakaoRedirectURI)
	if err != nil {
		_ = h.machine.Transition(status.AuthRequired)
		return h.mapError(err)
	}

	if err := h.creds.Save(&session.Credentials{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Profile: session.Profile{
			ID:              res.Profile.ID,
			KakaoID:         res.Profile.KakaoID,
			Nickname:        res.Profile.Nickname,
			Email:           res.Profile.Email,
			ProfileImageURL: res.Profile.ProfileImageURL,
		},
	}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	_ = h.machine.Transition(status.Resolving)
	h.recoverLocalID(c.Request().Context())
	me, err := h.resolver.Resolve()
	if err != nil || me == nil {
		_ = h.machine.Transition(status.AuthRequired)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "profile carried no resolvable identifier")
	}
	_ = h.machine.Transition(status.Ready)

	h.bus.Emit(bus.KindSessionAuthenticated, me)
	h.poller.Kick(0)
	h.log.Info("logged in", zap.Int64("local_id", me.LocalID), zap.Int64("foreign_id", me.ForeignID))
	return c.JSON(http.StatusOK, StatusResponse{
		State:     string(h.machine.Current()),
		Session:   h.sessionName,
		LoggedIn:  true,
		LocalID:   me.LocalID,
		ForeignID: me.ForeignID,
		Nickname:  me.Nickname,
	})
}

// recoverLocalID backfills a missing DB primary key after a code
// exchange whose profile only carried the Kakao id. Best effort: the
// resolver's JWT fallback still covers tokens that embed the id.
func (h *Handler) recoverLocalID(ctx context.Context) {
	creds, err := h.creds.Load()
	if err != nil || creds == nil || creds.Profile.ID != 0 {
		return
	}

	var user market.User
	if creds.Profile.KakaoID != 0 {
		user, err = h.client.FetchUserByKakaoID(ctx, creds.Profile.KakaoID)
	}
	if err != nil || user.ID == 0 {
		user, err = h.client.FetchMe(ctx)
	}
	if err != nil || user.ID == 0 {
		return
	}

	creds.Profile.ID = user.ID
	if user.Nickname != "" && creds.Profile.Nickname == "" {
		creds.Profile.Nickname = user.Nickname
	}
	if err := h.creds.Save(creds); err != nil {
		h.log.Warn("persisting recovered profile", zap.Error(err))
	}
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.creds.Clear(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.unread.Reset()
	_ = h.machine.Transition(status.AuthRequired)
	h.bus.Emit(bus.KindSessionExpired, nil)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Rooms(c echo.Context) error {
	views := h.poller.Rooms()
	out := make([]RoomResponse, 0, len(views))
	for _, v := range views {
		peer := v.Peer.Nickname
		if peer == "" && v.Peer.ID != 0 {
			peer = strconv.FormatInt(v.Peer.ID, 10)
		}
		out = append(out, RoomResponse{
			ID:           v.ID,
			PeerName:     peer,
			MySide:       v.MySide,
			Unreconciled: v.Unreconciled,
			ProductTitle: v.Product.Title,
			ProductPrice: v.Product.Price,
			LastMessage:  v.LastMessage,
			LastActivity: v.LastActivity.UnixMilli(),
			UnreadCount:  v.UnreadCount,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateRoom(c echo.Context) error {
	var req CreateRoomRequest
	if err := c.Bind(&req); err != nil || req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id required")
	}

	me, err := h.resolver.Resolve()
	if err != nil || me == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	buyerID := me.LocalID
	if buyerID == 0 {
		buyerID = me.ForeignID
	}

	roomID, err := h.client.CreateRoom(c.Request().Context(), buyerID, req.ProductID)
	if err != nil {
		return h.mapError(err)
	}

	h.bus.Emit(bus.KindRoomCreated, roomID)
	return c.JSON(http.StatusCreated, CreateRoomResponse{RoomID: roomID})
}

func (h *Handler) LeaveRoom(c echo.Context) error {
	roomID, err := roomParam(c)
	if err != nil {
		return err
	}
	// advisory: the server may keep the room; the next list poll decides
	if err := h.client.LeaveRoom(c.Request().Context(), roomID); err != nil && !errors.Is(err, market.ErrNotFound) {
		return h.mapError(err)
	}
	h.feeds.Close(roomID)
	h.bus.Emit(bus.KindRoomDeleted, roomID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Messages(c echo.Context) error {
	roomID, err := roomParam(c)
	if err != nil {
		return err
	}

	feed := h.feeds.Open(roomID)
	select {
	case <-feed.Ready():
	case <-time.After(bootstrapWait):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "room bootstrap timed out")
	case <-c.Request().Context().Done():
		return c.Request().Context().Err()
	}

	meta := feed.Meta()
	entries := feed.Snapshot()
	resp := MessagesResponse{
		RoomID:      roomID,
		PeerName:    meta.Peer.Nickname,
		ProductName: meta.Product.Title,
		Placeholder: meta.Placeholder,
		CanSend:     feed.CanSend(),
		Entries:     make([]EntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, entryResponse(e))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) SendText(c echo.Context) error {
	roomID, err := roomParam(c)
	if err != nil {
		return err
	}
	var req SendTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	tempID, err := h.sender.QueueText(roomID, req.Content)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusAccepted, SendResponse{TempID: tempID})
}

func (h *Handler) SendMedia(c echo.Context) error {
	roomID, err := roomParam(c)
	if err != nil {
		return err
	}
	var req SendMediaRequest
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path required")
	}
	if req.Kind == "" {
		req.Kind = "image"
	}

	tempID, err := h.sender.QueueMedia(roomID, req.Path, req.Kind, h.mediaDir)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusAccepted, SendResponse{TempID: tempID})
}

func (h *Handler) MarkRead(c echo.Context) error {
	roomID, err := roomParam(c)
	if err != nil {
		return err
	}
	h.bus.Emit(bus.KindRoomRead, roomID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CloseRoom(c echo.Context) error {
	roomID, err := roomParam(c)
	if err != nil {
		return err
	}
	h.feeds.Close(roomID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Focus(c echo.Context) error {
	h.bus.Emit(bus.KindUIFocus, nil)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func roomParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid room id")
	}
	return id, nil
}

// mapError translates domain errors to HTTP statuses for the local
// client. Session expiry is the only global failure; everything else is
// scoped to the request.
func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, market.ErrSessionExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	case errors.Is(err, market.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, outbox.ErrEmptyContent):
		return echo.NewHTTPError(http.StatusBadRequest, "empty message content")
	case errors.Is(err, outbox.ErrRoomNotReady):
		return echo.NewHTTPError(http.StatusConflict, "room still loading")
	}
	var apiErr *market.APIError
	if errors.As(err, &apiErr) {
		return echo.NewHTTPError(http.StatusBadGateway, apiErr.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
