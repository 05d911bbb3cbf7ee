package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/hyperjump/elastipass/internal/models"
)

func TestKafkaSink_Append(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var rec models.AuditRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if rec.Query != "bob" || rec.Hits != 7 {
			return fmt.Errorf("unexpected record %+v", rec)
		}
		return nil
	})
	s := NewKafkaSinkFromProducer(producer, "")
	if err := s.Append(context.Background(), &models.AuditRecord{Query: "bob", Hits: 7}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestKafkaSink_AppendFails(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	s := NewKafkaSinkFromProducer(producer, "audit")
	err := s.Append(context.Background(), &models.AuditRecord{Query: "x"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("got %v", err)
	}
	_ = s.Close()
}

func TestKafkaSink_CanceledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	s := NewKafkaSinkFromProducer(producer, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Append(ctx, &models.AuditRecord{}); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
	_ = s.Close()
}

func TestNewKafkaSink_requiresBrokers(t *testing.T) {
	if _, err := NewKafkaSink(nil, ""); err == nil {
		t.Error("expected an error without brokers")
	}
}
