package hyperliquid

import (
	"github.com/goccy/go-json"

	"hlsubmit/pkg/exchange"
)

// responseBody is the success schema before the "response" member is resolved;
// it is an object on "ok" and a bare message string on "err".
type responseBody struct {
	Status   string                  `json:"status"`
	Response json.RawMessage         `json:"response"`
	Data     *exchange.OrderStatuses `json:"data"`
}

// structuredError mirrors ErrorBody with every member required.
type structuredError struct {
	Code *uint16 `json:"code"`
	Msg  *string `json:"msg"`
	Data *string `json:"data"`
}

// Classify maps an HTTP status and raw body onto an outcome or a typed error.
//
//	< 400     decoded statuses, or OutcomeOther carrying the raw body when it does not decode
//	400..499  *exchange.ClientError, structured when the body is {code,msg,data}
//	>= 500    *exchange.ServerError with the raw body as message
func Classify(status int, body []byte) (*exchange.Outcome, error) {
	switch {
	case status >= 500:
		return nil, &exchange.ServerError{StatusCode: status, Message: string(body)}
	case status >= 400:
		return nil, classifyClientError(status, body)
	default:
		return classifySuccess(body), nil
	}
}

func classifyClientError(status int, body []byte) error {
	var parsed structuredError
	err := json.Unmarshal(body, &parsed)
	if err == nil && (parsed.Code == nil || parsed.Msg == nil || parsed.Data == nil) {
		err = errMissingErrorFields
	}
	if err != nil {
		desc := err.Error()
		return &exchange.ClientError{StatusCode: status, Message: string(body), Data: &desc}
	}
	return &exchange.ClientError{StatusCode: status, Code: parsed.Code, Message: *parsed.Msg, Data: parsed.Data}
}

func classifySuccess(body []byte) *exchange.Outcome {
	var parsed responseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return otherOutcome(body)
	}

	switch parsed.Status {
	case "err":
		var msg string
		if err := json.Unmarshal(parsed.Response, &msg); err != nil {
			msg = string(parsed.Response)
		}
		return &exchange.Outcome{Kind: exchange.OutcomeRejected, Message: msg}
	case "ok":
	default:
		return otherOutcome(body)
	}

	statuses := parsed.Data
	if len(parsed.Response) > 0 && statuses == nil {
		var inner exchange.OrderResponseData
		if err := json.Unmarshal(parsed.Response, &inner); err != nil {
			return otherOutcome(body)
		}
		statuses = inner.Data
	}
	if statuses == nil || len(statuses.Statuses) == 0 {
		return otherOutcome(body)
	}

	out := outcomeFromStatus(statuses.Statuses[0])
	out.Statuses = statuses.Statuses
	if out.Kind == exchange.OutcomeOther {
		out.Raw = string(body)
	}
	return out
}

func outcomeFromStatus(st exchange.OrderStatusResponse) *exchange.Outcome {
	switch {
	case st.Filled != nil:
		return &exchange.Outcome{
			Kind:    exchange.OutcomeFilled,
			Oid:     st.Filled.Oid,
			TotalSz: st.Filled.TotalSz,
			AvgPx:   st.Filled.AvgPx,
		}
	case st.Resting != nil:
		return &exchange.Outcome{Kind: exchange.OutcomeResting, Oid: st.Resting.Oid}
	case st.Error != "":
		return &exchange.Outcome{Kind: exchange.OutcomeRejected, Message: st.Error}
	default:
		return &exchange.Outcome{Kind: exchange.OutcomeOther, Message: st.Text}
	}
}

func otherOutcome(body []byte) *exchange.Outcome {
	return &exchange.Outcome{Kind: exchange.OutcomeOther, Raw: string(body)}
}
