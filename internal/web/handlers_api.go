package web

import (
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tuya-air/internal/gateway"
	"tuya-air/internal/quirk"
	"tuya-air/internal/source"
	"tuya-air/internal/store"
	"tuya-air/internal/zcl/clusters"
)

// profileView is the JSON form of a quirk profile.
type profileView struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Signatures  []quirk.Signature        `json:"signatures"`
	DataPoints  []quirk.DataPointMapping `json:"datapoints"`
}

func newProfileView(p *quirk.Profile) profileView {
	return profileView{
		Name:        p.Name(),
		Description: p.Description(),
		Signatures:  p.Signatures(),
		DataPoints:  p.Mappings(),
	}
}

// deviceIEEE reads and normalizes the {ieee} path parameter.
func (s *Server) deviceIEEE(w http.ResponseWriter, r *http.Request) (string, bool) {
	ieee, err := gateway.NormalizeIEEE(chi.URLParam(r, "ieee"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return ieee, true
}

// writeGatewayError maps gateway errors onto HTTP status codes.
func (s *Server) writeGatewayError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, gateway.ErrUnknownDevice):
		s.writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, gateway.ErrNoProfile):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error(op, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.gw.Devices()
	if err != nil {
		s.writeGatewayError(w, "list devices", err)
		return
	}
	if devices == nil {
		devices = []*store.Device{}
	}
	s.writeJSON(w, http.StatusOK, devices)
}

type addDeviceRequest struct {
	IEEEAddress  string `json:"ieee_address"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	FriendlyName string `json:"friendly_name"`
	Profile      string `json:"profile"`
}

func (s *Server) handleAPIAddDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := gateway.NormalizeIEEE(req.IEEEAddress); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dev, err := s.gw.AddDevice(store.Device{
		IEEEAddress:  req.IEEEAddress,
		Manufacturer: req.Manufacturer,
		Model:        req.Model,
		FriendlyName: req.FriendlyName,
		Profile:      req.Profile,
	})
	if err != nil {
		s.writeGatewayError(w, "add device", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, dev)
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceIEEE(w, r)
	if !ok {
		return
	}
	dev, err := s.gw.Device(ieee)
	if err != nil {
		s.writeGatewayError(w, "get device", err)
		return
	}
	s.writeJSON(w, http.StatusOK, dev)
}

type renameDeviceRequest struct {
	FriendlyName string `json:"friendly_name"`
}

func (s *Server) handleAPIRenameDevice(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceIEEE(w, r)
	if !ok {
		return
	}

	var req renameDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.gw.Rename(ieee, req.FriendlyName); err != nil {
		s.writeGatewayError(w, "rename device", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "friendly_name": req.FriendlyName})
}

func (s *Server) handleAPIDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceIEEE(w, r)
	if !ok {
		return
	}
	if err := s.gw.RemoveDevice(ieee); err != nil {
		s.writeGatewayError(w, "delete device", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIMeasurements(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceIEEE(w, r)
	if !ok {
		return
	}
	values, err := s.gw.Measurements(ieee)
	if err != nil {
		s.writeGatewayError(w, "measurements", err)
		return
	}
	s.writeJSON(w, http.StatusOK, values)
}

type dataPointRequest struct {
	DataPoint *uint8   `json:"dp"`
	Value     *float64 `json:"value"`
}

// handleAPIDataPoint injects one numeric data point as if the device had reported it.
func (s *Server) handleAPIDataPoint(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceIEEE(w, r)
	if !ok {
		return
	}

	var req dataPointRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DataPoint == nil || req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "dp and value are required")
		return
	}

	res, err := s.gw.OnDataPointReport(ieee, *req.DataPoint, *req.Value)
	if err != nil {
		s.writeGatewayError(w, "data point report", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type frameRequest struct {
	Payload string `json:"payload"`
}

type frameResponse struct {
	Results []quirk.Result `json:"results"`
	Error   string         `json:"error,omitempty"`
}

// handleAPIFrame injects a raw Tuya 0xEF00 data report given as hex.
// A frame that decodes only partially still answers 200 with the decoded
// results and the decode error.
func (s *Server) handleAPIFrame(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.deviceIEEE(w, r)
	if !ok {
		return
	}

	var req frameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload, err := hex.DecodeString(req.Payload)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "payload is not valid hex")
		return
	}

	results, err := s.gw.HandleClusterCommand(source.ClusterCommandEvent{
		Source:    "api",
		IEEE:      ieee,
		Endpoint:  1,
		ClusterID: clusters.TuyaClusterID,
		CommandID: clusters.TuyaCmdDataReport,
		Payload:   payload,
	})
	if errors.Is(err, gateway.ErrUnknownDevice) {
		s.writeGatewayError(w, "frame", err)
		return
	}

	resp := frameResponse{Results: results}
	if resp.Results == nil {
		resp.Results = []quirk.Result{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAPIListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := s.gw.Catalog().Profiles()
	views := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, newProfileView(p))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPIGetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := s.gw.Catalog().Get(chi.URLParam(r, "name"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	s.writeJSON(w, http.StatusOK, newProfileView(p))
}

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.gw.Registry().All())
}
