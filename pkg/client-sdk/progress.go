package wabisabisdk

import (
	"sync"
	"time"

	"github.com/ark-network/wabisabi/pkg/common"
	log "github.com/sirupsen/logrus"
)

// ProgressEvent is published by the coinjoin client while it goes through
// a round.
type ProgressEvent interface {
	isProgressEvent()
}

type RoundStarted struct {
	RoundId string
}

type EnteringInputRegistration struct {
	RoundId   string
	TimeoutAt time.Time
}

type EnteringConnectionConfirmation struct {
	RoundId   string
	TimeoutAt time.Time
}

type EnteringOutputRegistration struct {
	RoundId   string
	TimeoutAt time.Time
}

// EnteringCriticalPhase is published once the inputs confirmed their
// connection, from here on quitting the round gets the coins banned.
type EnteringCriticalPhase struct {
	RoundId string
}

type LeavingCriticalPhase struct {
	RoundId string
}

type RoundEnded struct {
	RoundId string
	Success bool
	Txid    string
}

type CoinBanned struct {
	Coin   common.Coin
	Reason string
}

func (RoundStarted) isProgressEvent()                   {}
func (EnteringInputRegistration) isProgressEvent()      {}
func (EnteringConnectionConfirmation) isProgressEvent() {}
func (EnteringOutputRegistration) isProgressEvent()     {}
func (EnteringCriticalPhase) isProgressEvent()          {}
func (LeavingCriticalPhase) isProgressEvent()           {}
func (RoundEnded) isProgressEvent()                     {}
func (CoinBanned) isProgressEvent()                     {}

const progressBufferSize = 32

// progressBus fans events out to every subscriber. Slow subscribers miss
// events instead of blocking the publisher.
type progressBus struct {
	lock        sync.Mutex
	subscribers []chan ProgressEvent
	closed      bool
}

func (b *progressBus) subscribe() <-chan ProgressEvent {
	b.lock.Lock()
	defer b.lock.Unlock()

	ch := make(chan ProgressEvent, progressBufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

func (b *progressBus) publish(event ProgressEvent) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			log.Warnf("progress subscriber too slow, dropped %T event", event)
		}
	}
}

func (b *progressBus) close() {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
