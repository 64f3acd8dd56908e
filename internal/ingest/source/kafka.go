package source

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
	"github.com/xdg-go/scram"

	"logscan/pkg/errs"
)

var (
	sha256Generator scram.HashGeneratorFcn = sha256.New
	sha512Generator scram.HashGeneratorFcn = sha512.New
)

// scramClient implements sarama.SCRAMClient via xdg-go/scram, driving
// the consumer group's SASL handshake.
type scramClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

func (x *scramClient) Begin(userName, password, authzID string) (err error) {
	x.Client, err = x.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.ClientConversation = x.Client.NewConversation()
	return nil
}

func (x *scramClient) Step(challenge string) (string, error) {
	return x.ClientConversation.Step(challenge)
}

func (x *scramClient) Done() bool {
	return x.ClientConversation.Done()
}

// KafkaSCRAMMechanism selects which SCRAM hash the consumer authenticates
// with.
type KafkaSCRAMMechanism string

const (
	SCRAMSHA256 KafkaSCRAMMechanism = "SCRAM-SHA-256"
	SCRAMSHA512 KafkaSCRAMMechanism = "SCRAM-SHA-512"
)

// KafkaConfig configures the Kafka consumer-group source.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string

	SASLEnabled   bool
	SASLUser      string
	SASLPassword  string
	SASLMechanism KafkaSCRAMMechanism
}

// Kafka consumes one topic via a consumer group and emits each message's
// value as a line.
type Kafka struct {
	Config KafkaConfig
	Logger *logrus.Logger
}

func (k Kafka) Lines(ctx context.Context) (<-chan string, error) {
	log := k.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	if k.Config.SASLEnabled {
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.User = k.Config.SASLUser
		cfg.Net.SASL.Password = k.Config.SASLPassword
		cfg.Net.SASL.Handshake = true
		cfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256

		generator := sha256Generator
		if k.Config.SASLMechanism == SCRAMSHA512 {
			cfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			generator = sha512Generator
		}
		cfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: generator}
		}
	}

	group, err := sarama.NewConsumerGroup(k.Config.Brokers, k.Config.ConsumerGroup, cfg)
	if err != nil {
		return nil, errs.Runtime(component, "Kafka.Lines", "create consumer group").Wrap(err)
	}

	out := make(chan string)
	handler := &consumerHandler{out: out}

	go func() {
		defer close(out)
		defer group.Close()

		for {
			if err := group.Consume(ctx, []string{k.Config.Topic}, handler); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).WithField("topic", k.Config.Topic).Warn("consumer group session ended with error")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return out, nil
}

type consumerHandler struct {
	out chan<- string
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			select {
			case <-sess.Context().Done():
				return nil
			case h.out <- string(msg.Value):
			}
			sess.MarkMessage(msg, "")
		}
	}
}
