package vocab

var defaultTokens = []string{
	"el", "la", "de", "que", "y", "es", "en", "un", "se", "no",
	"te", "lo", "le", "da", "su", "por", "son", "con", "para", "al",
	"una", "sus", "del", "las", "como", "pero", "más", "muy", "ya", "todo",
	"casa", "vida", "día", "agua", "tiempo", "año", "trabajo", "persona", "hombre", "mujer",
	"niño", "país", "ciudad", "mundo", "lugar", "momento", "forma", "manera", "parte", "problema",
	"hacer", "decir", "estar", "tener", "llegar", "pasar", "deber", "poner", "parecer", "quedar",
	"creer", "hablar", "llevar", "dejar", "seguir", "encontrar", "llamar", "venir", "pensar", "salir",
	"volver", "tomar", "conocer", "vivir", "sentir", "tratar", "mirar", "contar", "empezar", "esperar",
	"bueno", "grande", "nuevo", "primer", "último", "largo", "pequeño", "mismo", "mejor", "mayor",
	"propio", "general", "público", "cierto", "poco", "mucho", "tanto", "otro", "cada",
	"bien", "también", "aquí", "donde", "cuando", "mientras", "según", "entre",
	"sin", "sobre", "hasta", "desde", "durante", "contra", "hacia", "mediante", "excepto", "salvo",
	"hermano", "hermana", "padre", "madre", "hijo", "hija", "amigo", "amiga", "familia", "gente",
	"escuela", "universidad", "colegio", "libro", "mesa", "silla", "puerta", "ventana", "carro", "coche",
	"perro", "gato", "animal", "árbol", "flor", "montaña", "río", "mar", "cielo", "sol",
	"luna", "estrella", "noche", "mañana", "tarde", "hora", "minuto", "segundo", "semana", "mes",
	"rojo", "azul", "verde", "amarillo", "negro", "blanco", "gris", "marrón", "rosa", "naranja",
	"comer", "beber", "dormir", "caminar", "correr", "jugar", "estudiar", "trabajar", "leer", "escribir",
	"música", "película", "juego", "deporte", "fútbol", "tenis", "natación", "comida", "bebida", "pan",
	"feliz", "triste", "contento", "enojado", "cansado", "enfermo", "sano", "fuerte", "débil", "rápido",
	// continuations referenced by the context rules
	"fuertes", "ligeras", "grandes", "poderosas", "hermosas", "realmente",
	"claros", "detallados", "útiles", "completos", "efectivos",
	"celsius", "centígrados", "aproximadamente", "mensuales", "diarios", "cuidadosamente",
	"porque", "pues", "dado", "debido", "a",
}

var defaultRules = []Rule{
	{Key: "porque tienen alas", Continuations: []string{"fuertes", "ligeras", "grandes", "poderosas", "hermosas"}},
	{Key: "tecnología fascinante", Continuations: []string{"que", "para", "con", "muy", "realmente"}},
	{Key: "hacer resúmenes", Continuations: []string{"claros", "detallados", "útiles", "completos", "efectivos"}},
	{Key: "cien grados", Continuations: []string{"celsius", "centígrados", "de", "y", "aproximadamente"}},
	{Key: "sabores únicos", Continuations: []string{"y", "que", "muy", "con", "de"}},
	{Key: "tus gastos", Continuations: []string{"mensuales", "diarios", "cuidadosamente", "y", "bien"}},
	{Key: "es nadar", Continuations: []string{"porque", "ya", "pues", "dado", "y"}},
	{Key: "la playa", Continuations: []string{"y", "para", "durante", "con", "en"}},
	{Key: "es Barcelona", Continuations: []string{"por", "debido", "porque", "ya", "pues"}},
	{Key: "su equipo", Continuations: []string{"hacia", "a", "para", "con", "y"}},
}

// Default returns the demonstration vocabulary of common Spanish words and
// the demo context rules.
func Default() Vocabulary {
	return New(defaultTokens, defaultRules)
}

// DemoTexts are the sample inputs the context rules were written for.
var DemoTexts = []string{
	"Los pájaros vuelan porque tienen alas",
	"La inteligencia artificial es una tecnología fascinante",
	"Para estudiar mejor, recomiendo hacer resúmenes",
	"El agua hierve cuando alcanza cien grados",
	"La comida mexicana tiene sabores únicos",
	"Es importante ahorrar y controlar tus gastos",
	"Mi deporte favorito es nadar",
	"En verano me gusta ir a la playa",
	"Mi ciudad favorita es Barcelona",
	"El entrenador motivó a su equipo",
}
