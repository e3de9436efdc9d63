package worker

import (
	"context"
	"sync"
	"time"

	"sensorhub/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler consumes one MQTT message.
type MessageHandler interface {
	Handle(ctx context.Context, topic string, payload []byte)
}

type MQTTConfig struct {
	Server   string
	ClientID string
	Username string
	Password string
	Topic    string
	// ConnectRetryInterval defaults to 5s.
	ConnectRetryInterval time.Duration
}

// MQTTWorker subscribes to the sensor topic and hands every message to a MessageHandler.
// Messages are processed one at a time in arrival order.
type MQTTWorker struct {
	cfg     MQTTConfig
	handler MessageHandler
	log     *logger.Logger
	client  mqtt.Client
	msgCh   chan mqtt.Message
	ctx     context.Context
	cancel  context.CancelFunc

	// mu orders Connect in Start against Disconnect in Stop.
	mu      sync.Mutex
	stopped bool
}

func NewMQTTWorker(cfg MQTTConfig, handler MessageHandler, log *logger.Logger) *MQTTWorker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &MQTTWorker{
		cfg:     cfg,
		handler: handler,
		log:     log.WithComponent("mqtt_worker"),
		msgCh:   make(chan mqtt.Message, 1024),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.client = mqtt.NewClient(w.clientOptions())
	return w
}

func (w *MQTTWorker) Name() string { return "mqtt" }

func (w *MQTTWorker) clientOptions() *mqtt.ClientOptions {
	retry := w.cfg.ConnectRetryInterval
	if retry <= 0 {
		retry = 5 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(w.cfg.Server).
		SetClientID(w.cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retry)

	if w.cfg.Username != "" {
		opts.SetUsername(w.cfg.Username)
	}
	if w.cfg.Password != "" {
		opts.SetPassword(w.cfg.Password)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		w.log.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		w.log.Logger.Info().Str("topic", w.cfg.Topic).Msg("MQTT connected, subscribing")
		if token := c.Subscribe(w.cfg.Topic, 1, w.onMessage); token.Wait() && token.Error() != nil {
			w.log.Logger.Error().Err(token.Error()).Str("topic", w.cfg.Topic).Msg("failed to subscribe")
		}
	}
	return opts
}

// Start connects to the broker and blocks, draining messages until Stop is called.
// It returns at once if Stop already ran.
func (w *MQTTWorker) Start() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.log.Logger.Info().Str("server", w.cfg.Server).Msg("connecting to MQTT broker")
	w.client.Connect()
	w.mu.Unlock()

	w.run()
}

func (w *MQTTWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	w.client.Disconnect(500)
	w.cancel()
}

func (w *MQTTWorker) onMessage(_ mqtt.Client, m mqtt.Message) {
	select {
	case w.msgCh <- m:
	case <-w.ctx.Done():
	}
}

func (w *MQTTWorker) run() {
	for {
		select {
		case m := <-w.msgCh:
			w.handler.Handle(w.ctx, m.Topic(), m.Payload())
		case <-w.ctx.Done():
			return
		}
	}
}
