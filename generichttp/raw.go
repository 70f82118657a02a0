package generichttp

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"

	"github.com/lakeshorecryotronics/go-driver/server"
)

// RawCommunicator sends raw protocol text to an instrument.  Messages
// ending in "?" are queries with a reply, anything else is a command.
type RawCommunicator interface {
	Command(cmds ...string) error
	Query(queries ...string) (string, error)
}

// Raw returns a handler that accepts {"str": message} and passes the
// message through to the instrument verbatim, replying {"str": response}
// for queries and an empty string for commands.
func Raw(comm RawCommunicator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		str := server.StrT{}
		err := json.NewDecoder(r.Body).Decode(&str)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var resp string
		if strings.HasSuffix(str.Str, "?") {
			resp, err = comm.Query(str.Str)
		} else {
			err = comm.Command(str.Str)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := server.HumanPayload{T: types.String, String: resp}
		hp.EncodeAndRespond(w, r)
	}
}

// InjectRaw adds a POST /raw route to an HTTPer's table.
func InjectRaw(other HTTPer, comm RawCommunicator) {
	rt := other.RT()
	rt[MethodPath{Method: http.MethodPost, Path: "/raw"}] = Raw(comm)
}
