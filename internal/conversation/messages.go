package conversation

// Reply texts.
const (
	msgReset           = "Contexto reiniciado. ¿Tienes código de inmueble o deseas buscar por filtros?"
	msgFallback        = "¿Tienes código de inmueble o deseas buscar por filtros?"
	msgAskCode         = "Perfecto, dime el código (1 a 4 dígitos)."
	msgCodeNotFound    = "No encuentro el código %s. Verifica el número o intenta otro."
	msgCodeUnavailable = "El código %s no está disponible ahora."
	msgOfferFilters    = "¿Deseas buscar por filtros para mostrarte opciones similares?"
	msgCatalogDown     = "En este momento no puedo consultar el catálogo de inmuebles. Intenta de nuevo en unos minutos o habla con un asesor."

	msgAskType    = "¿Podrías decirme el tipo de inmueble que buscas (casa, apartamento, apartaestudio o local) y tu presupuesto máximo?"
	msgAskBudget  = "¿Cuál es tu presupuesto máximo (en pesos)?"
	msgAskRooms   = "¿Cuántas habitaciones mínimo?"
	msgNoResults  = "No encontré inmuebles disponibles que coincidan con tu búsqueda."
	msgWiden      = "¿Quieres ampliar el presupuesto (+10%) o cambiar de zona/tipo?"
	msgNoMore     = "Ya te mostré todas las opciones disponibles con esos filtros."
	msgWidened    = "Amplié tu presupuesto a %s."
	msgChangeType = "Listo, cambiemos el tipo de inmueble."

	msgMenu = "¡Hola%s! Soy el asistente virtual de %s. ¿Qué deseas hacer?\n" +
		"1. Buscar por filtros\n" +
		"2. Tengo código\n" +
		"3. Consignar mi inmueble\n" +
		"4. Simular comisión\n" +
		"5. Hablar con asesor"

	msgSellerStart    = "¡Excelente! Te ayudo a consignar tu inmueble. ¿Cuál es tu nombre completo?"
	msgSellerAskName  = "¿Me compartes tu nombre completo?"
	msgSellerAskPhone = "Gracias, %s. ¿Cuál es tu número de celular?"
	msgSellerBadPhone = "Ese número no parece válido. Envíame un celular o teléfono de 7 a 13 dígitos."
	msgSellerAskAddr  = "¿Cuál es la dirección del inmueble?"
	msgSellerAskType  = "¿Qué tipo de inmueble es? (casa, apartamento, apartaestudio o local)"
	msgSellerBadType  = "No reconocí el tipo. Responde casa, apartamento, apartaestudio o local."
	msgSellerAskPrice = "¿Cuál es el valor de arriendo o venta que esperas (en pesos)?"
	msgSellerBadPrice = "Envíame el valor esperado en pesos, por ejemplo 2.500.000 o 2,5 millones."
	msgSellerDone     = "¡Listo! Registramos tu inmueble. Un asesor de %s te contactará pronto."
	msgSellerSummary  = "Nombre: %s\nTeléfono: %s\nDirección: %s\nTipo: %s\nValor esperado: %s"
	msgVisitAsk       = "¡Con gusto! Para agendar la visita envíame tu nombre y número de celular."
	msgVisitAskCode   = "¡Con gusto! Para agendar la visita al inmueble código %s envíame tu nombre y número de celular."
	msgVisitBadPhone  = "Para agendar necesito un número de celular. ¿Me lo compartes?"
	msgVisitDone      = "¡Gracias%s! Un asesor te contactará al %s para confirmar la visita."
	msgVisitDoneCode  = "¡Gracias%s! Un asesor te contactará al %s para confirmar la visita al inmueble código %s."
	msgFeeAsk         = "Con gusto simulo lo que recibirías. ¿Cuál sería el valor del canon mensual (en pesos)?"
	msgFeeBadAmount   = "¿Cuál es el valor del canon mensual? Por ejemplo 1.800.000."
	msgAdvisor        = "Te comunico con un asesor de %s. En breve te escribirán por este chat."
	msgAdvisorPhone   = "Te comunico con un asesor de %s. También puedes escribir o llamar al %s."
	msgCompanyHours   = "Nuestro horario de atención: %s"
	msgCompanyAddress = "Nuestra oficina queda en %s."
	msgCompanyPhone   = "Puedes comunicarte con nosotros al %s."
	msgCompanyWebsite = "Conoce todos nuestros inmuebles en %s"
	msgCompanyUnknown = "Por ahora no tengo esa información a la mano. Si quieres te comunico con un asesor."
)

// Quick replies.
var (
	qrStart        = []string{"Tengo código", "Buscar por filtros"}
	qrFallback     = []string{"Tengo código", "Buscar por filtros", "Hablar con asesor"}
	qrCodeNotFound = []string{"Intentar otro código", "Buscar por filtros"}
	qrUnavailable  = []string{"Sí, buscar por filtros", "Hablar con asesor"}
	qrProperty     = []string{"Agendar visita", "Ver más opciones", "Hablar con asesor"}
	qrNoResults    = []string{"Ampliar presupuesto", "Cambiar tipo", "Hablar con asesor"}
	qrMenu         = []string{"Buscar por filtros", "Tengo código", "Consignar mi inmueble", "Simular comisión", "Hablar con asesor"}
	qrTypes        = []string{"Casa", "Apartamento", "Apartaestudio", "Local"}
	qrFee          = []string{"Consignar mi inmueble", "Hablar con asesor"}
	qrSellerDone   = []string{"Simular comisión", "Hablar con asesor"}
	qrAdvisor      = []string{"Hablar con asesor"}
)
