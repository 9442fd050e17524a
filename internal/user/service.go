package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/password"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/media"
	subentity "github.com/ovaphlow/pitchfork/service-account-go/internal/subscriber/entity"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-account-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-account-go/pkg/utilities"
)

// Store is the account persistence used by UserService. Lookups return
// sql.ErrNoRows when nothing matches and writes return userrepo.ErrDuplicate
// on a username or email collision.
type Store interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error)
	UpdateDetails(ctx context.Context, id, fullName, email string) (*entity.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (*entity.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (*entity.User, error)
	AppendWatchHistory(ctx context.Context, id, videoID string) (entity.WatchHistory, error)
}

type Subscriptions interface {
	Subscribe(ctx context.Context, s *subentity.Subscription) (bool, error)
	Unsubscribe(ctx context.Context, subscriberID, channelID string) (bool, error)
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
}

// Uploader stores images and removes the ones whose account write failed.
type Uploader interface {
	Upload(ctx context.Context, prefix string, f media.File) (string, error)
	Delete(ctx context.Context, url string) error
}

const (
	avatarPrefix = "avatars"
	coverPrefix  = "covers"
)

// UserService orchestrates registration and profile flows.
type UserService struct {
	store    Store
	subs     Subscriptions
	uploader Uploader
	hasher   password.Hasher
	logger   *zap.SugaredLogger
	newID    func() string
}

func NewUserService(store Store, subs Subscriptions, uploader Uploader, hasher password.Hasher, logger *zap.SugaredLogger) *UserService {
	return &UserService{
		store:    store,
		subs:     subs,
		uploader: uploader,
		hasher:   hasher,
		logger:   logger,
		newID:    utilities.NewSnowflakeID,
	}
}

// RegisterInput carries the registration form. CoverImage is optional.
type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     *media.File
	CoverImage *media.File
}

func (s *UserService) internal(op string, err error) error {
	s.logger.Errorw(op+" failed", "err", err)
	return apperr.New(apperr.ErrInternal, "")
}

// storeErr maps repository errors onto the error kinds.
func (s *UserService) storeErr(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperr.New(apperr.ErrNotFound, "user does not exist")
	case errors.Is(err, userrepo.ErrDuplicate):
		return apperr.New(apperr.ErrConflict, "user with email or username already exists")
	default:
		return s.internal(op, err)
	}
}

// Register creates an account. The returned user carries no secrets.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	username := entity.NormalizeIdentity(in.Username)
	email := entity.NormalizeIdentity(in.Email)
	fullName := strings.TrimSpace(in.FullName)
	if username == "" || email == "" || fullName == "" || strings.TrimSpace(in.Password) == "" {
		return nil, apperr.New(apperr.ErrValidation, "all fields are required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.New(apperr.ErrValidation, "email is invalid")
	}

	_, err := s.store.FindByUsernameOrEmail(ctx, username, email)
	if err == nil {
		return nil, apperr.New(apperr.ErrConflict, "user with email or username already exists")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, s.internal("register lookup", err)
	}

	if in.Avatar == nil || in.Avatar.Body == nil {
		return nil, apperr.New(apperr.ErrValidation, "avatar file is required")
	}
	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, password.ErrTooLong) {
		return nil, apperr.New(apperr.ErrValidation, "password must be at most 72 bytes")
	}
	if err != nil {
		return nil, s.internal("register hash", err)
	}

	avatarURL, err := s.uploader.Upload(ctx, avatarPrefix, *in.Avatar)
	if err != nil {
		s.logger.Warnw("avatar upload failed", "err", err)
		return nil, apperr.New(apperr.ErrValidation, "avatar file is required")
	}
	var coverURL string
	if in.CoverImage != nil && in.CoverImage.Body != nil {
		if coverURL, err = s.uploader.Upload(ctx, coverPrefix, *in.CoverImage); err != nil {
			s.logger.Warnw("cover image upload failed", "err", err)
			coverURL = ""
		}
	}

	u := &entity.User{
		ID:            s.newID(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		PasswordHash:  hash,
		WatchHistory:  entity.WatchHistory{},
	}
	if err := s.store.Create(ctx, u); err != nil {
		s.discard(ctx, avatarURL, coverURL)
		return nil, s.storeErr("register create", err)
	}
	s.logger.Infow("user registered", "user_id", u.ID)
	return u.Public(), nil
}

// Get returns the account without secrets.
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeErr("get user", err)
	}
	return u.Public(), nil
}

func (s *UserService) UpdateDetails(ctx context.Context, id, fullName, email string) (*entity.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = entity.NormalizeIdentity(email)
	if fullName == "" || email == "" {
		return nil, apperr.New(apperr.ErrValidation, "all fields are required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.New(apperr.ErrValidation, "email is invalid")
	}
	u, err := s.store.UpdateDetails(ctx, id, fullName, email)
	if err != nil {
		return nil, s.storeErr("update details", err)
	}
	return u.Public(), nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, id string, f *media.File) (*entity.User, error) {
	return s.updateImage(ctx, id, f, avatarPrefix, "avatar file is missing", s.store.UpdateAvatar)
}

func (s *UserService) UpdateCoverImage(ctx context.Context, id string, f *media.File) (*entity.User, error) {
	return s.updateImage(ctx, id, f, coverPrefix, "cover image file is missing", s.store.UpdateCoverImage)
}

func (s *UserService) updateImage(ctx context.Context, id string, f *media.File, prefix, missing string,
	save func(ctx context.Context, id, url string) (*entity.User, error)) (*entity.User, error) {
	if f == nil || f.Body == nil {
		return nil, apperr.New(apperr.ErrValidation, missing)
	}
	url, err := s.uploader.Upload(ctx, prefix, *f)
	if err != nil {
		return nil, s.internal("upload "+prefix, err)
	}
	u, err := save(ctx, id, url)
	if err != nil {
		s.discard(ctx, url)
		return nil, s.storeErr("save "+prefix, err)
	}
	return u.Public(), nil
}

// discard removes uploads that no account row points to. Failures are only
// logged so the caller's error is what the client sees.
func (s *UserService) discard(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := s.uploader.Delete(ctx, url); err != nil {
			s.logger.Warnw("orphaned upload not deleted", "url", url, "err", err)
		}
	}
}

// ChannelProfile returns the public page of username as seen by viewerID.
func (s *UserService) ChannelProfile(ctx context.Context, username, viewerID string) (*entity.ChannelProfile, error) {
	username = entity.NormalizeIdentity(username)
	if username == "" {
		return nil, apperr.New(apperr.ErrValidation, "username is missing")
	}
	u, err := s.store.GetByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "channel does not exist")
	}
	if err != nil {
		return nil, s.internal("channel lookup", err)
	}
	p := &entity.ChannelProfile{
		ID:            u.ID,
		Username:      u.Username,
		FullName:      u.FullName,
		Email:         u.Email,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
	}
	if p.SubscribersCount, err = s.subs.CountSubscribers(ctx, u.ID); err != nil {
		return nil, s.internal("count subscribers", err)
	}
	if p.ChannelsSubscribedToCount, err = s.subs.CountSubscribedTo(ctx, u.ID); err != nil {
		return nil, s.internal("count subscriptions", err)
	}
	if viewerID != "" {
		if p.IsSubscribed, err = s.subs.IsSubscribed(ctx, viewerID, u.ID); err != nil {
			return nil, s.internal("is subscribed", err)
		}
	}
	return p, nil
}

func (s *UserService) channelID(ctx context.Context, subscriberID, username string) (string, error) {
	username = entity.NormalizeIdentity(username)
	if username == "" {
		return "", apperr.New(apperr.ErrValidation, "username is missing")
	}
	ch, err := s.store.GetByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.ErrNotFound, "channel does not exist")
	}
	if err != nil {
		return "", s.internal("channel lookup", err)
	}
	if ch.ID == subscriberID {
		return "", apperr.New(apperr.ErrValidation, "cannot subscribe to yourself")
	}
	return ch.ID, nil
}

// Subscribe makes subscriberID follow the channel named username. Repeating it is a no-op.
func (s *UserService) Subscribe(ctx context.Context, subscriberID, username string) error {
	channelID, err := s.channelID(ctx, subscriberID, username)
	if err != nil {
		return err
	}
	sub := &subentity.Subscription{ID: s.newID(), SubscriberID: subscriberID, ChannelID: channelID}
	if _, err := s.subs.Subscribe(ctx, sub); err != nil {
		return s.internal("subscribe", err)
	}
	return nil
}

func (s *UserService) Unsubscribe(ctx context.Context, subscriberID, username string) error {
	channelID, err := s.channelID(ctx, subscriberID, username)
	if err != nil {
		return err
	}
	if _, err := s.subs.Unsubscribe(ctx, subscriberID, channelID); err != nil {
		return s.internal("unsubscribe", err)
	}
	return nil
}

// WatchHistory returns watched video ids, oldest first.
func (s *UserService) WatchHistory(ctx context.Context, id string) (entity.WatchHistory, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeErr("watch history", err)
	}
	if u.WatchHistory == nil {
		return entity.WatchHistory{}, nil
	}
	return u.WatchHistory, nil
}

// AddToWatchHistory records videoID as the most recently watched.
func (s *UserService) AddToWatchHistory(ctx context.Context, id, videoID string) (entity.WatchHistory, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, apperr.New(apperr.ErrValidation, "video id is required")
	}
	w, err := s.store.AppendWatchHistory(ctx, id, videoID)
	if err != nil {
		return nil, s.storeErr("append watch history", err)
	}
	return w, nil
}
