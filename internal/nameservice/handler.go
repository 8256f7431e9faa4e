package nameservice

import (
	"github.com/sirupsen/logrus"

	"github.com/tarunmenon95/gohdfs/internal/clusterstore"
	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/metrics"
	"github.com/tarunmenon95/gohdfs/internal/transport"
)

// nowFunc is overridable in tests; production code always uses
// time.Now. Kept as a package var rather than threading a clock
// through every call.
var nowFunc = defaultNow

// Handler implements the three DATANODE_HANDSHAKE / DATANODE_HEARTBEAT
// / CLIENT message behaviors described in the design. It owns no
// network code: Server reads and writes frames and calls these methods
// with the already-decoded message.
type Handler struct {
	cluster config.Cluster
	ns      *NamespaceStore
	members *Membership
	status  *clusterstore.Store // nil disables audit persistence
	metrics *metrics.NameService
	log     *logrus.Entry
}

// NewHandler builds a Handler. status and m may be nil.
func NewHandler(cluster config.Cluster, ns *NamespaceStore, members *Membership, status *clusterstore.Store, m *metrics.NameService, log *logrus.Entry) *Handler {
	return &Handler{cluster: cluster, ns: ns, members: members, status: status, metrics: m, log: log}
}

// HandleHandshake implements the acceptance truth table of §4.2:
// accept iff versions match and the presented namespace id equals the
// cluster's. A nil presented namespace id always yields a failed
// handshake carrying the cluster's namespace id, so the data node can
// persist it and retry.
func (h *Handler) HandleHandshake(msg transport.HandshakeMessage) transport.HandshakeMessage {
	versionsMatch := msg.SoftwareVersion == h.cluster.SoftwareVersion
	accept := versionsMatch && msg.NamespaceID != nil && *msg.NamespaceID == h.cluster.NamespaceID

	namespaceID := h.cluster.NamespaceID
	resp := transport.HandshakeMessage{
		MessageType:     msg.MessageType,
		SoftwareVersion: msg.SoftwareVersion,
		DatanodeID:      msg.DatanodeID,
		NamespaceID:     &namespaceID,
		AddressTuple:    msg.AddressTuple,
		Handshake:       &accept,
	}

	result := "rejected"
	if accept {
		result = "accepted"
		h.members.Admit(msg.DatanodeID, msg.AddressTuple)
		if h.status != nil {
			if err := h.status.RecordHandshake(msg.DatanodeID, msg.AddressTuple.String(), nowFunc()); err != nil {
				h.log.WithError(err).Warn("clusterstore: record handshake")
			}
		}
		h.log.WithFields(logrus.Fields{"datanode_id": msg.DatanodeID, "addr": msg.AddressTuple}).Info("datanode admitted")
	} else {
		h.log.WithFields(logrus.Fields{
			"datanode_id":    msg.DatanodeID,
			"versions_match": versionsMatch,
		}).Info("handshake rejected")
	}
	if h.metrics != nil {
		h.metrics.HandshakesTotal.WithLabelValues(result).Inc()
		h.metrics.DatanodesAdmitted.Set(float64(h.members.Count()))
	}
	return resp
}

// HandleHeartbeat implements DATANODE_HEARTBEAT: overwrite the
// data node's block report. There is no response frame.
func (h *Handler) HandleHeartbeat(msg transport.HeartbeatMessage) {
	h.members.RecordHeartbeat(msg.DatanodeID, msg.BlockReport)
	if h.status != nil {
		if err := h.status.RecordHeartbeat(msg.DatanodeID, len(msg.BlockReport), nowFunc()); err != nil {
			h.log.WithError(err).Warn("clusterstore: record heartbeat")
		}
	}
	if h.metrics != nil {
		h.metrics.HeartbeatsTotal.Inc()
	}
	h.log.WithFields(logrus.Fields{"datanode_id": msg.DatanodeID, "blocks": len(msg.BlockReport)}).Debug("heartbeat")
}

// HandleClient implements the six CLIENT actions of §4.2.
func (h *Handler) HandleClient(msg transport.ClientRequest) transport.ClientResponse {
	switch msg.ActionType {
	case transport.ActionMkdir:
		return h.mutate("mkdir", msg.Path, h.ns.Mkdir)
	case transport.ActionRmdir:
		return h.mutate("rmdir", msg.Path, h.ns.Rmdir)
	case transport.ActionRm:
		return h.mutate("rm", msg.Path, func(p string) error {
			_, err := h.ns.Rmfile(p)
			return err
		})
	case transport.ActionIns:
		return h.handleIns(msg.Path)
	case transport.ActionLs:
		return h.handleLs(msg.Path)
	case transport.ActionCat:
		return h.handleCat(msg.Path)
	default:
		return transport.ClientResponse{Success: false, Message: "unknown action_type: " + msg.ActionType}
	}
}

func (h *Handler) mutate(op, path string, fn func(string) error) transport.ClientResponse {
	err := fn(path)
	result := "ok"
	if err != nil {
		result = "error"
	}
	if h.metrics != nil {
		h.metrics.NamespaceMutationsTotal.WithLabelValues(op, result).Inc()
		h.metrics.InodeSlotsUsed.Set(float64(h.occupied()))
	}
	if err != nil {
		h.log.WithError(err).WithField("path", path).Info(op + " failed")
		return transport.ClientResponse{Success: false, Message: err.Error()}
	}
	h.log.WithField("path", path).Info(op)
	return transport.ClientResponse{Success: true}
}

func (h *Handler) handleIns(path string) transport.ClientResponse {
	blockID, err := h.ns.Mkfile(path)
	op, result := "ins", "ok"
	if err != nil {
		result = "error"
	}
	if h.metrics != nil {
		h.metrics.NamespaceMutationsTotal.WithLabelValues(op, result).Inc()
		h.metrics.InodeSlotsUsed.Set(float64(h.occupied()))
	}
	if err != nil {
		h.log.WithError(err).WithField("path", path).Info("ins failed")
		return transport.ClientResponse{Success: false, Message: err.Error()}
	}
	replicas, err := h.members.SampleReplicas(h.cluster.ReplicationFactor)
	if err != nil {
		h.log.WithError(err).WithField("path", path).Info("ins: insufficient replicas")
		return transport.ClientResponse{Success: false, Message: err.Error()}
	}
	h.log.WithFields(logrus.Fields{"path": path, "block_id": blockID, "datanodes": replicas}).Info("ins")
	return transport.ClientResponse{Success: true, BlockID: blockID, DataNodes: replicas}
}

func (h *Handler) handleLs(path string) transport.ClientResponse {
	entries, err := h.ns.List(path)
	if err != nil {
		return transport.ClientResponse{Success: false, Message: err.Error()}
	}
	contents := make([]transport.NameKind, 0, len(entries))
	for _, e := range entries {
		contents = append(contents, transport.NameKind{Name: e.Name, Kind: e.Kind})
	}
	return transport.ClientResponse{Success: true, Contents: contents}
}

func (h *Handler) handleCat(path string) transport.ClientResponse {
	blockID, err := h.ns.LookupBlock(path)
	if err != nil {
		return transport.ClientResponse{Success: false, Message: err.Error()}
	}
	addrs := h.members.LocateBlock(blockID)
	if len(addrs) == 0 {
		return transport.ClientResponse{Success: false, Message: "no datanode currently reports block " + blockID}
	}
	return transport.ClientResponse{Success: true, BlockID: blockID, DatanodeAddrs: addrs}
}

// occupied reports the namespace's current inode slot usage for the
// inode_slots_used gauge. Reading it takes no lock, matching the
// design's treatment of list/lookup_block as unserialized reads.
func (h *Handler) occupied() int {
	return h.ns.table.OccupiedCount()
}
