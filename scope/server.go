package scope

import (
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScopeServer is scope that serves frames over a network connection to remote clients.
type ScopeServer struct {
	address string

	server     *grpcServer
	serverLock *sync.Mutex
}

// NewScopeServer creates a new scope server that listens on the given address.
func NewScopeServer(address string) *ScopeServer {
	return &ScopeServer{
		address:    address,
		server:     nil,
		serverLock: &sync.Mutex{},
	}
}

func (s *ScopeServer) Active() bool {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	return s.server != nil
}

func (s *ScopeServer) Addr() net.Addr {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	if s.server != nil {
		return s.server.Addr()
	}
	return nil
}

// Start listens on the configured address and serves frames in the background.
func (s *ScopeServer) Start() error {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	if s.server != nil {
		return errors.New("scope was already started")
	}

	server, err := newGRPCServer(s.address, defaultOutBufferSize)
	if err != nil {
		return err
	}
	err = server.listen()
	if err != nil {
		return err
	}
	s.server = server

	go func() {
		err := server.Start()
		if err != nil {
			log.Errorf("scope server failed: %v", err)
		}

		s.serverLock.Lock()
		if s.server == server {
			s.server = nil
		}
		s.serverLock.Unlock()
	}()

	return nil
}

func (s *ScopeServer) Stop() {
	s.serverLock.Lock()
	server := s.server
	s.server = nil
	s.serverLock.Unlock()

	if server != nil {
		server.Stop()
	}
}

func (s *ScopeServer) ShowTimeFrame(timeFrame *TimeFrame) {
	frame, err := encodeTimeFrame(timeFrame)
	if err != nil {
		log.Debugf("cannot encode time frame: %v", err)
		return
	}
	s.send(frame)
}

func (s *ScopeServer) ShowSpectralFrame(spectralFrame *SpectralFrame) {
	frame, err := encodeSpectralFrame(spectralFrame)
	if err != nil {
		log.Debugf("cannot encode spectral frame: %v", err)
		return
	}
	s.send(frame)
}

func (s *ScopeServer) send(frame *structpb.Struct) {
	s.serverLock.Lock()
	server := s.server
	s.serverLock.Unlock()

	if server != nil {
		server.SendFrame(frame)
	}
}
