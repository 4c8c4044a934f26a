package logic

// ---- statements ----

type stmt interface{ line() int }

type pos struct{ no int }

func (p pos) line() int { return p.no }

type (
	// importStmt binds modules (import m as a) or module members (from m import x as a).
	importStmt struct {
		pos
		from  string
		items []importItem
	}
	globalStmt struct {
		pos
		names []string
	}
	passStmt  struct{ pos }
	breakStmt struct{ pos }
	contStmt  struct{ pos }
	exprStmt  struct {
		pos
		x expr
	}
	returnStmt struct {
		pos
		x expr // may be nil
	}
	assignStmt struct {
		pos
		target expr // nameExpr, indexExpr or attrExpr
		op     string // "", "+", "-", "*", "/"
		x      expr
	}
	defStmt struct {
		pos
		name   string
		params []string
		async  bool
		body   []stmt
	}
	whileStmt struct {
		pos
		cond expr
		body []stmt
	}
	forStmt struct {
		pos
		name string
		iter expr
		body []stmt
	}
	ifStmt struct {
		pos
		conds  []expr
		bodies [][]stmt
		orelse []stmt
	}
)

// ---- expressions ----

type expr interface{}

type (
	constExpr struct{ v value }
	nameExpr  struct{ name string }
	attrExpr  struct {
		x    expr
		name string
	}
	indexExpr struct {
		x, idx expr
	}
	callExpr struct {
		fn   expr
		args []expr
		kw   []kwArg
	}
	listExpr  struct{ items []expr }
	tupleExpr struct{ items []expr }
	unaryExpr struct {
		op string
		x  expr
	}
	binExpr struct {
		op   string
		l, r expr
	}
	awaitExpr struct{ x expr }
)

type importItem struct {
	name  string // module for plain imports, member for from-imports
	alias string
}

type kwArg struct {
	name string
	x    expr
}
