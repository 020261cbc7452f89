package server

import (
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/wayfarer-travel/wayfarer/pkg/api"
	"github.com/wayfarer-travel/wayfarer/pkg/currency"
)

func (s *Server) jsonConvertCurrency(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()

	amount, err := strconv.ParseFloat(query.Get("amount"), 64)
	if err != nil {
		failureResponse(w, http.StatusBadRequest, "amount is required and must be numeric")
		return
	}

	from := query.Get("from")
	if from == "" {
		failureResponse(w, http.StatusBadRequest, "from currency is required")
		return
	}
	to := query.Get("to")
	if to == "" {
		to = "USD"
	}

	conversion, err := s.currency.Convert(req.Context(), amount, from, to)
	if err != nil {
		if !currency.Supported(from) || !currency.Supported(to) {
			failureResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		log.WithError(err).Error("error converting currency")
		failureResponse(w, http.StatusBadGateway, "Exchange rates are unavailable")
		return
	}

	api.RespondWithJSON(http.StatusOK, w, conversion)
}

func (s *Server) jsonSupportedCurrencies(w http.ResponseWriter, _ *http.Request) {
	codes := currency.SupportedCurrencies()
	out := make([]map[string]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, map[string]string{
			"code":   code,
			"symbol": currency.Symbol(code),
		})
	}
	api.RespondWithJSON(http.StatusOK, w, out)
}
