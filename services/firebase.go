package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// FCM rejects multicast batches above this size.
const maxMulticastTokens = 500

var (
	messagingClient *messaging.Client
	once            sync.Once
	initError       error
)

// InitFirebase builds the process-wide messaging client once.
func InitFirebase(ctx context.Context, credentialsPath string, logger *logrus.Logger) (*messaging.Client, error) {
	once.Do(func() {
		if credentialsPath == "" {
			initError = errors.New("firebase credentials path is empty")
			return
		}
		logger.WithField("credentials", credentialsPath).Info("Initializing Firebase")

		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
		if err != nil {
			initError = fmt.Errorf("init firebase app: %w", err)
			return
		}
		messagingClient, err = app.Messaging(ctx)
		if err != nil {
			initError = fmt.Errorf("get messaging client: %w", err)
			return
		}
		logger.Info("Firebase Messaging client initialized")
	})
	return messagingClient, initError
}

// Notifier delivers a push notification to every device of the given users.
type Notifier interface {
	NotifyUsers(ctx context.Context, userIDs []string, title, body string, data map[string]string) error
}

// TokenStore resolves and prunes device tokens.
type TokenStore interface {
	TokensFor(ctx context.Context, userIDs []string) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

var isUnregistered = messaging.IsUnregistered

type FCMNotifier struct {
	client   multicaster
	tokens   TokenStore
	logger   *logrus.Logger
	executor failsafe.Executor[*messaging.BatchResponse]
}

func NewFCMNotifier(client *messaging.Client, tokens TokenStore, logger *logrus.Logger) *FCMNotifier {
	return newFCMNotifier(client, tokens, logger, 200*time.Millisecond)
}

func newFCMNotifier(client multicaster, tokens TokenStore, logger *logrus.Logger, baseDelay time.Duration) *FCMNotifier {
	retry := retrypolicy.NewBuilder[*messaging.BatchResponse]().
		WithBackoff(baseDelay, 10*baseDelay).
		WithMaxRetries(3).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[*messaging.BatchResponse]) {
			logger.WithError(e.LastError()).WithField("attempt", e.Attempts()).Warn("[FCM] Retrying multicast")
		}).
		Build()
	return &FCMNotifier{
		client:   client,
		tokens:   tokens,
		logger:   logger,
		executor: failsafe.With[*messaging.BatchResponse](retry),
	}
}

func (n *FCMNotifier) NotifyUsers(ctx context.Context, userIDs []string, title, body string, data map[string]string) error {
	tokens, err := n.tokens.TokensFor(ctx, userIDs)
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	if len(tokens) == 0 {
		n.logger.WithField("users", len(userIDs)).Debug("[FCM] No tokens, skipping")
		return nil
	}

	var dead []string
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		batch := tokens[start:min(start+maxMulticastTokens, len(tokens))]
		res, err := n.send(ctx, batch, title, body, data)
		if err != nil {
			return err
		}
		dead = append(dead, res.Dead...)
	}

	if len(dead) > 0 {
		n.logger.WithField("count", len(dead)).Info("[FCM] Deleting dead tokens")
		if err := n.tokens.DeleteTokens(ctx, dead); err != nil {
			n.logger.WithError(err).Error("[FCM] Failed to delete dead tokens")
		}
	}
	return nil
}

// SendResult summarises one multicast.
type SendResult struct {
	Success int
	Failure int
	Dead    []string
}

func (n *FCMNotifier) send(ctx context.Context, tokens []string, title, body string, data map[string]string) (SendResult, error) {
	message := &messaging.MulticastMessage{
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Tokens:       tokens,
	}

	response, err := n.executor.WithContext(ctx).Get(func() (*messaging.BatchResponse, error) {
		return n.client.SendEachForMulticast(ctx, message)
	})
	if err != nil {
		n.logger.WithError(err).Error("[FCM] Multicast send failed entirely")
		return SendResult{}, err
	}

	res := SendResult{Success: response.SuccessCount, Failure: response.FailureCount}
	for i, r := range response.Responses {
		if r.Success || i >= len(tokens) {
			continue
		}
		n.logger.WithError(r.Error).WithField("token", tokenPrefix(tokens[i])).Warn("[FCM] Token error")
		if isUnregistered(r.Error) {
			res.Dead = append(res.Dead, tokens[i])
		}
	}
	n.logger.WithFields(logrus.Fields{
		"success": res.Success,
		"failure": res.Failure,
		"title":   title,
	}).Info("[FCM] Multicast result")
	return res, nil
}

func tokenPrefix(token string) string {
	return token[:min(10, len(token))] + "..."
}

// LogNotifier stands in when Firebase is not configured.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n LogNotifier) NotifyUsers(_ context.Context, userIDs []string, title, body string, _ map[string]string) error {
	n.Logger.WithFields(logrus.Fields{"users": len(userIDs), "title": title, "body": body}).
		Debug("[FCM] Notifications disabled, dropping")
	return nil
}
